package credits

import (
	"fmt"
	"math"
)

// Grade is the quality grade attached to a verification run
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// GradeBand assigns Grade to every score at or above MinScore
// that is not claimed by a higher band.
type GradeBand struct {
	Grade    Grade   `json:"grade"`
	MinScore float64 `json:"min_score"`
}

// GradeBands are ordered from the best grade to the worst
type GradeBands []GradeBand

// DefaultGradeBands returns the standard A-D cut-offs
func DefaultGradeBands() GradeBands {
	return GradeBands{
		{Grade: GradeA, MinScore: 0.9},
		{Grade: GradeB, MinScore: 0.75},
		{Grade: GradeC, MinScore: 0.5},
		{Grade: GradeD, MinScore: 0},
	}
}

// Validate checks that the bands cover [0,1] exactly once: cut-offs strictly decrease
// and the last band starts at zero.
func (b GradeBands) Validate() error {
	if len(b) == 0 {
		return fmt.Errorf("%w: no bands configured", ErrInvalidGradeBands)
	}

	seen := make(map[Grade]bool, len(b))
	for i, band := range b {
		if band.Grade == "" {
			return fmt.Errorf("%w: band %d has no grade", ErrInvalidGradeBands, i)
		}
		if seen[band.Grade] {
			return fmt.Errorf("%w: grade %s appears twice", ErrInvalidGradeBands, band.Grade)
		}
		seen[band.Grade] = true

		if math.IsNaN(band.MinScore) || band.MinScore < 0 || band.MinScore > 1 {
			return fmt.Errorf("%w: grade %s cut-off %v outside [0,1]", ErrInvalidGradeBands, band.Grade, band.MinScore)
		}
		if i > 0 && band.MinScore >= b[i-1].MinScore {
			return fmt.Errorf("%w: grade %s cut-off must be below grade %s", ErrInvalidGradeBands, band.Grade, b[i-1].Grade)
		}
	}

	if b[len(b)-1].MinScore != 0 {
		return fmt.Errorf("%w: lowest band must start at 0", ErrInvalidGradeBands)
	}
	return nil
}

// GradeFor maps a score to exactly one grade. Scores outside [0,1] are clamped.
func (b GradeBands) GradeFor(score float64) Grade {
	if len(b) == 0 {
		return GradeD
	}
	if math.IsNaN(score) || score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	for _, band := range b {
		if score >= band.MinScore {
			return band.Grade
		}
	}
	return b[len(b)-1].Grade
}
