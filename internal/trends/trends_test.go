package trends

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"carbon-scribe/verification-engine/internal/credits"
	"carbon-scribe/verification-engine/internal/verification"
)

func run(totalKg, score, green float64, status verification.Status, grade credits.Grade, issued int64, carry float64) verification.Run {
	return verification.Run{
		Assessment: verification.Assessment{
			TotalCo2Kg:     totalKg,
			Score:          score,
			MeanConfidence: score,
			GreenScore:     green,
			Status:         status,
		},
		CreditEligibility: credits.Eligibility{
			EligibleCredits: issued,
			CarryForward:    carry,
			QualityGrade:    grade,
		},
	}
}

func TestSummarizeIsVolumeWeighted(t *testing.T) {
	runs := []verification.Run{
		run(10000, 1.0, 100, verification.StatusVerified, credits.GradeA, 10, 0),
		run(1000, 0.0, 0, verification.StatusRejected, credits.GradeD, 0, 1),
	}

	s := NewEngine(0).Summarize(runs)

	assert.InDelta(t, 90.91, s.CarbonScore, 1e-9)
	assert.InDelta(t, 90.91, s.ConfidenceScore, 1e-9)
	assert.InDelta(t, 90.91, s.GreenScore, 1e-9)
	assert.Equal(t, credits.GradeA, s.QualityGrade)
	assert.Equal(t, 2, s.RunCount)
}

func TestSummarizeGradeComesFromNewestRun(t *testing.T) {
	runs := []verification.Run{
		run(1, 0.3, 30, verification.StatusRejected, credits.GradeD, 0, 0.001),
		run(50000, 0.95, 95, verification.StatusVerified, credits.GradeA, 50, 0),
	}

	s := NewEngine(0).Summarize(runs)

	assert.Equal(t, credits.GradeD, s.QualityGrade)
}

func TestSummarizeTrendImproving(t *testing.T) {
	// oldest to newest: 40, 45, 70, 75
	runs := []verification.Run{
		run(100, 0.75, 75, verification.StatusNeedsReview, credits.GradeB, 0, 0.1),
		run(100, 0.70, 70, verification.StatusNeedsReview, credits.GradeC, 0, 0.1),
		run(100, 0.45, 45, verification.StatusRejected, credits.GradeD, 0, 0.1),
		run(100, 0.40, 40, verification.StatusRejected, credits.GradeD, 0, 0.1),
	}

	s := NewEngine(0).Summarize(runs)

	assert.Equal(t, Improving, s.Trend)
	assert.InDelta(t, 70.59, s.ImprovementRate, 0.01)
}

func TestSummarizeTrendDirections(t *testing.T) {
	tests := []struct {
		name   string
		greens []float64 // newest first
		want   Direction
	}{
		{"declining", []float64{40, 45, 70, 75}, Declining},
		{"within delta", []float64{52, 50, 48, 49}, Stable},
		{"exactly delta", []float64{55, 50}, Stable},
		{"single run", []float64{90}, Stable},
		{"odd count", []float64{90, 10, 10}, Improving},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var runs []verification.Run
			for _, g := range tt.greens {
				runs = append(runs, run(10, g/100, g, verification.StatusNeedsReview, credits.GradeC, 0, 0))
			}
			assert.Equal(t, tt.want, NewEngine(DefaultDelta).Summarize(runs).Trend)
		})
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := NewEngine(0).Summarize(nil)

	assert.Equal(t, Stable, s.Trend)
	assert.Zero(t, s.CarbonScore)
	assert.Zero(t, s.TotalCredits)
	assert.Zero(t, s.RunCount)
}

func TestSummarizeZeroWeightFallsBackToMean(t *testing.T) {
	runs := []verification.Run{
		run(0, 0.8, 80, verification.StatusNoData, credits.GradeB, 0, 0),
		run(0, 0.4, 40, verification.StatusNoData, credits.GradeD, 0, 0),
	}

	s := NewEngine(0).Summarize(runs)

	assert.InDelta(t, 60, s.CarbonScore, 1e-9)
	assert.InDelta(t, 60, s.GreenScore, 1e-9)
}

func TestTotalCreditsConvertsVerifiedCarryForward(t *testing.T) {
	runs := []verification.Run{
		run(2650, 0.9, 90, verification.StatusVerified, credits.GradeA, 2, 0.65),
		run(1400, 0.9, 90, verification.StatusVerified, credits.GradeA, 1, 0.4),
		// estimated tonnes are never issued
		run(5900, 0.6, 60, verification.StatusNeedsReview, credits.GradeC, 0, 5.9),
	}

	assert.Equal(t, int64(4), TotalCredits(runs))
}
