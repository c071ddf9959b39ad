package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-scribe/verification-engine/internal/verification"
)

const invoice = `{
	"documentType": "invoice",
	"confidence": 0.95,
	"lineItems": [
		{"productCategory": "ELECTRICITY", "hsnCode": "2716", "quantity": 3732.39, "unit": "kWh",
		 "co2Kg": 2650, "emissionFactor": 0.71}
	]
}`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestScoreCommand(t *testing.T) {
	path := writeFile(t, "invoice.json", invoice)

	out, err := execute(t, "score", path, "--tier", "free", "--format", "json", "--frameworks", "")
	require.NoError(t, err)

	var run verification.Run
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.Equal(t, verification.StatusVerified, run.Status)
	assert.Equal(t, int64(2), run.CreditEligibility.EligibleCredits)
	assert.NotEmpty(t, run.ContentHash)
}

func TestScoreCommandRejectsOverrideOnFreeTier(t *testing.T) {
	path := writeFile(t, "invoice.json", invoice)

	_, err := execute(t, "score", path, "--tier", "free", "--frameworks", "CBAM")
	assert.Error(t, err)
}

func TestScoreCommandExtractionFailure(t *testing.T) {
	path := writeFile(t, "failed.json", `{"error": "ocr timeout"}`)

	_, err := execute(t, "score", path, "--frameworks", "")
	assert.Error(t, err)
}

func TestFrameworksCommand(t *testing.T) {
	out, err := execute(t, "frameworks", "--country", "India", "--sector", "steel", "--size", "large", "--exports-eu")
	require.NoError(t, err)

	assert.Contains(t, out, "GHG_PROTOCOL")
	assert.Contains(t, out, "CBAM")
	assert.Contains(t, out, "INDIA_CCTS")
}
