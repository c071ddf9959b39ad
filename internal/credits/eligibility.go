package credits

import (
	"math"

	"github.com/shopspring/decimal"
)

// Eligibility is the credit outcome of one verification run. BasisCo2Kg is the volume
// the credits were computed on.
type Eligibility struct {
	BasisCo2Kg      float64 `json:"basis_co2_kg"`
	EligibleCredits int64   `json:"eligible_credits"`
	CarryForward    float64 `json:"carry_forward"`
	QualityGrade    Grade   `json:"quality_grade"`
}

// Engine converts verified reductions into whole credits and grades run quality
type Engine struct {
	bands GradeBands
}

// NewEngine creates a credit engine with the given grade bands
func NewEngine(bands GradeBands) (*Engine, error) {
	if err := bands.Validate(); err != nil {
		return nil, err
	}
	return &Engine{bands: bands}, nil
}

// DefaultEngine returns an engine using DefaultGradeBands
func DefaultEngine() *Engine {
	return &Engine{bands: DefaultGradeBands()}
}

// Bands returns the engine's grade bands
func (e *Engine) Bands() GradeBands {
	return e.bands
}

// Evaluate computes eligibility for a run. Credits are issued only for verified runs;
// everything that is not issued is carried forward.
func (e *Engine) Evaluate(totalCo2Kg, score float64, verified bool) Eligibility {
	tonnes := Tonnes(totalCo2Kg)

	credits := decimal.Zero
	if verified {
		credits = tonnes.Floor()
	}

	return Eligibility{
		BasisCo2Kg:      tonnes.Shift(3).InexactFloat64(),
		EligibleCredits: credits.IntPart(),
		CarryForward:    tonnes.Sub(credits).InexactFloat64(),
		QualityGrade:    e.bands.GradeFor(score),
	}
}

// Tonnes converts kilograms to tonnes without binary rounding.
// Negative and non-finite inputs count as zero.
func Tonnes(kg float64) decimal.Decimal {
	if math.IsNaN(kg) || math.IsInf(kg, 0) || kg <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(kg).Shift(-3)
}
