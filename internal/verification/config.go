package verification

import (
	"fmt"
	"math"
)

// Weights of the three score components
type Weights struct {
	Confidence  float64 `json:"confidence"`
	Methodology float64 `json:"methodology"`
	Provenance  float64 `json:"provenance"`
}

// DefaultWeights returns the production weights
func DefaultWeights() Weights {
	return Weights{Confidence: 0.40, Methodology: 0.35, Provenance: 0.25}
}

func (w Weights) sum() float64 {
	return w.Confidence + w.Methodology + w.Provenance
}

// Validate checks the weights are non-negative and not all zero
func (w Weights) Validate() error {
	for _, c := range []struct {
		name  string
		value float64
	}{
		{"confidence", w.Confidence},
		{"methodology", w.Methodology},
		{"provenance", w.Provenance},
	} {
		if math.IsNaN(c.value) || c.value < 0 {
			return fmt.Errorf("%w: %s weight must be non-negative", ErrInvalidConfig, c.name)
		}
	}
	if w.sum() <= 0 {
		return fmt.Errorf("%w: weights sum to zero", ErrInvalidConfig)
	}
	return nil
}

// Thresholds holds every cut-off the scorer applies
type Thresholds struct {
	Verified          float64 `json:"verified"`
	NeedsReview       float64 `json:"needs_review"`
	LowConfidence     float64 `json:"low_confidence"`
	UnverifiableShare float64 `json:"unverifiable_share"`
	DominantShare     float64 `json:"dominant_share"`
	IoTAdjustment     float64 `json:"iot_adjustment"`
}

// DefaultThresholds returns the production thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		Verified:          0.8,
		NeedsReview:       0.5,
		LowConfidence:     0.5,
		UnverifiableShare: 0.2,
		DominantShare:     0.5,
		IoTAdjustment:     0.05,
	}
}

// Validate checks the status bands are ordered and every ratio is within [0,1]
func (t Thresholds) Validate() error {
	if !(t.NeedsReview > 0 && t.NeedsReview < t.Verified && t.Verified <= 1) {
		return fmt.Errorf("%w: need 0 < needs_review (%v) < verified (%v) <= 1",
			ErrInvalidConfig, t.NeedsReview, t.Verified)
	}
	if t.LowConfidence < 0 || t.LowConfidence > 1 {
		return fmt.Errorf("%w: low_confidence must be within [0,1]", ErrInvalidConfig)
	}
	if t.UnverifiableShare < 0 || t.UnverifiableShare > 1 {
		return fmt.Errorf("%w: unverifiable_share must be within [0,1]", ErrInvalidConfig)
	}
	if t.DominantShare <= 0 || t.DominantShare > 1 {
		return fmt.Errorf("%w: dominant_share must be within (0,1]", ErrInvalidConfig)
	}
	if t.IoTAdjustment < 0 || t.IoTAdjustment >= 1 {
		return fmt.Errorf("%w: iot_adjustment must be within [0,1)", ErrInvalidConfig)
	}
	return nil
}

// StatusFor maps a score onto the status bands
func (t Thresholds) StatusFor(score float64) Status {
	switch {
	case score >= t.Verified:
		return StatusVerified
	case score >= t.NeedsReview:
		return StatusNeedsReview
	default:
		return StatusRejected
	}
}
