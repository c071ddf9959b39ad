package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 0.8, cfg.Scoring.Thresholds.Verified)
	assert.Equal(t, 0.5, cfg.Scoring.Thresholds.NeedsReview)
	assert.Len(t, cfg.Scoring.Grades, 4)
	assert.False(t, cfg.AWS.ArchiveEnabled())
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 9090},
		"scoring": {"thresholds": {"verified": 0.85, "needs_review": 0.55, "low_confidence": 0.5,
			"unverifiable_share": 0.2, "dominant_share": 0.5, "iot_adjustment": 0.05}},
		"aws": {"evidence_bucket": "evidence"}
	}`), 0o600))

	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("EVENTS_TOPIC_ARN", "arn:aws:sns:ap-south-1:123456789012:verification-events")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 0.85, cfg.Scoring.Thresholds.Verified)
	assert.True(t, cfg.AWS.ArchiveEnabled())
	assert.True(t, cfg.AWS.EventsEnabled())
	// sections absent from the file keep their defaults
	assert.Equal(t, 0.4, cfg.Scoring.Weights.Confidence)
}

func TestLoadConfigRejectsInvertedThresholds(t *testing.T) {
	t.Setenv("SCORE_REVIEW_THRESHOLD", "0.9")

	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":`), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestGetDatabaseURL(t *testing.T) {
	db := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5432, DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", db.GetDatabaseURL())
}

func TestLoggingConfigNewLogger(t *testing.T) {
	logger, err := LoggingConfig{Level: "debug"}.NewLogger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	_, err = LoggingConfig{Level: "loud"}.NewLogger()
	assert.Error(t, err)
}
