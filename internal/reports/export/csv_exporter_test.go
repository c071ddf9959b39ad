package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-scribe/verification-engine/internal/compliance"
	"carbon-scribe/verification-engine/internal/credits"
	"carbon-scribe/verification-engine/internal/verification"
)

func TestWriteRunsIncludesDisclaimerVerbatim(t *testing.T) {
	frameworks := []compliance.FrameworkID{compliance.GHGProtocol, compliance.CBAM}
	disclaimer := compliance.Disclaimer(frameworks)

	run := verification.Run{
		ID:        uuid.New(),
		SubjectID: "account-1",
		Assessment: verification.Assessment{
			TotalCo2Kg: 2650,
			Score:      0.85,
			Status:     verification.StatusVerified,
			Flags:      []verification.Flag{{Code: verification.FlagMixedMethodology}},
		},
		CreditEligibility: credits.Eligibility{EligibleCredits: 2, CarryForward: 0.65, QualityGrade: credits.GradeB},
		Frameworks:        frameworks,
		Disclaimer:        disclaimer,
		ContentHash:       "abc123",
		CreatedAt:         time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	exporter := NewCSVExporter(&buf, DefaultCSVOptions())
	require.NoError(t, exporter.WriteRuns([]verification.Run{run}))
	assert.Equal(t, 1, exporter.RowCount())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, RunColumns, rows[0])

	row := map[string]string{}
	for i, col := range rows[0] {
		row[col] = rows[1][i]
	}
	assert.Equal(t, disclaimer, row["disclaimer"])
	assert.Equal(t, "GHG_PROTOCOL;CBAM", row["frameworks"])
	assert.Equal(t, "mixed_methodology", row["flags"])
	assert.Equal(t, "2", row["eligible_credits"])
	assert.Equal(t, "0.65", row["carry_forward_t"])
	assert.Equal(t, "B", row["quality_grade"])
	assert.Equal(t, "2026-03-01T10:00:00Z", row["created_at"])
}

func TestWriteRunsEmptyStillWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVExporter(&buf, CSVOptions{}).WriteRuns(nil))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
