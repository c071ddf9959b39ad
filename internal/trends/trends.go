package trends

import (
	"math"

	"github.com/shopspring/decimal"

	"carbon-scribe/verification-engine/internal/credits"
	"carbon-scribe/verification-engine/internal/verification"
)

// Direction of the green score over time
type Direction string

const (
	Improving Direction = "improving"
	Declining Direction = "declining"
	Stable    Direction = "stable"
)

// DefaultDelta is the green score difference between halves that counts as a change
const DefaultDelta = 5.0

// Summary is the rolling view over a subject's run history
type Summary struct {
	CarbonScore     float64       `json:"carbon_score"`
	ConfidenceScore float64       `json:"confidence_score"`
	GreenScore      float64       `json:"green_score"`
	TotalCredits    int64         `json:"total_credits"`
	QualityGrade    credits.Grade `json:"quality_grade"`
	Trend           Direction     `json:"trend"`
	ImprovementRate float64       `json:"improvement_rate"`
	RunCount        int           `json:"run_count"`
}

// Engine summarises run histories
type Engine struct {
	delta float64
}

// NewEngine creates a trend engine; a non-positive delta uses DefaultDelta
func NewEngine(delta float64) *Engine {
	if delta <= 0 || math.IsNaN(delta) {
		delta = DefaultDelta
	}
	return &Engine{delta: delta}
}

// Summarize combines runs ordered newest first. Scalars are CO2e-weighted averages;
// the grade is taken from the newest run.
func (e *Engine) Summarize(runs []verification.Run) Summary {
	s := Summary{Trend: Stable, RunCount: len(runs)}
	if len(runs) == 0 {
		return s
	}

	var weightSum, scoreSum, confidenceSum, greenSum float64
	for _, r := range runs {
		w := r.TotalCo2Kg
		if w < 0 || math.IsNaN(w) {
			w = 0
		}
		weightSum += w
		scoreSum += w * r.Score
		confidenceSum += w * r.MeanConfidence
		greenSum += w * r.GreenScore
	}

	if weightSum > 0 {
		s.CarbonScore = round2(scoreSum / weightSum * 100)
		s.ConfidenceScore = round2(confidenceSum / weightSum * 100)
		s.GreenScore = round2(greenSum / weightSum)
	} else {
		// every run is empty; fall back to a plain mean
		n := float64(len(runs))
		var score, confidence, green float64
		for _, r := range runs {
			score += r.Score
			confidence += r.MeanConfidence
			green += r.GreenScore
		}
		s.CarbonScore = round2(score / n * 100)
		s.ConfidenceScore = round2(confidence / n * 100)
		s.GreenScore = round2(green / n)
	}

	s.QualityGrade = runs[0].CreditEligibility.QualityGrade
	s.TotalCredits = TotalCredits(runs)
	s.Trend, s.ImprovementRate = e.direction(runs)

	return s
}

// TotalCredits sums issued credits and converts the accumulated verified carry-forward
// into whole credits.
func TotalCredits(runs []verification.Run) int64 {
	var issued int64
	ledger := credits.NewLedger(decimal.Zero)
	for i := len(runs) - 1; i >= 0; i-- {
		r := runs[i]
		issued += r.CreditEligibility.EligibleCredits
		carry := r.CreditEligibility.CarryForward
		if r.Status == verification.StatusVerified && carry > 0 && !math.IsInf(carry, 0) {
			ledger.PostTonnes(decimal.NewFromFloat(carry), true)
		}
	}
	return issued + ledger.Issued()
}

// direction compares the newer half of the history with the older half. For an odd
// count the middle run belongs to the older half.
func (e *Engine) direction(runs []verification.Run) (Direction, float64) {
	if len(runs) < 2 {
		return Stable, 0
	}

	half := len(runs) / 2
	newer := meanGreen(runs[:half])
	older := meanGreen(runs[half:])
	diff := newer - older

	rate := 0.0
	if older != 0 {
		rate = round2(diff / older * 100)
	}

	switch {
	case diff > e.delta:
		return Improving, rate
	case diff < -e.delta:
		return Declining, rate
	default:
		return Stable, rate
	}
}

func meanGreen(runs []verification.Run) float64 {
	var sum float64
	for _, r := range runs {
		sum += r.GreenScore
	}
	return sum / float64(len(runs))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
