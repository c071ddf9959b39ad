package verification

import (
	"time"

	"github.com/google/uuid"

	"carbon-scribe/verification-engine/internal/compliance"
	"carbon-scribe/verification-engine/internal/credits"
	"carbon-scribe/verification-engine/internal/emissions"
)

// Status is the verification outcome of a run
type Status string

const (
	StatusVerified    Status = "verified"
	StatusNeedsReview Status = "needs_review"
	StatusRejected    Status = "rejected"
	// StatusNoData is reported for an empty record set. It is not a rejection.
	StatusNoData Status = "no_data"
)

// Risk is the greenwashing risk tier
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// FlagCode identifies a violated scoring rule
type FlagCode string

const (
	FlagMissingBaseline     FlagCode = "missing_baseline"
	FlagFactorNotCited      FlagCode = "emission_factor_not_cited"
	FlagMissingActivityData FlagCode = "missing_activity_data"
	FlagLowConfidence       FlagCode = "low_confidence"
	FlagUnverifiableShare   FlagCode = "unverifiable_share"
	FlagScopeConflict       FlagCode = "scope_conflict"
	FlagMixedMethodology    FlagCode = "mixed_methodology"
)

// Flag is one violated rule with a human-readable message
type Flag struct {
	Code    FlagCode `json:"code"`
	Message string   `json:"message"`
}

// ReductionClaim is a reduction the subject asserts against a baseline
type ReductionClaim struct {
	ClaimedKg   float64  `json:"claimed_kg"`
	BaselineKg  *float64 `json:"baseline_kg,omitempty"`
	BaselineRef string   `json:"baseline_ref,omitempty"`
}

// HasBaseline reports whether the claim is backed by a documented baseline
func (c ReductionClaim) HasBaseline() bool {
	return c.BaselineKg != nil && *c.BaselineKg > 0
}

// Input is everything the scorer looks at. AI-derived signals such as an external
// green score are passed in already computed.
type Input struct {
	Evidence           []emissions.Evidence `json:"evidence"`
	IoTAdjusted        bool                 `json:"iot_adjusted"`
	ReductionClaim     *ReductionClaim      `json:"reduction_claim,omitempty"`
	ExternalGreenScore *float64             `json:"external_green_score,omitempty"`
}

// Assessment is the scorer output for one batch of records
type Assessment struct {
	TotalCo2Kg       float64               `json:"total_co2_kg"`
	NetCo2Kg         float64               `json:"net_co2_kg"`
	Score            float64               `json:"score"`
	Status           Status                `json:"status"`
	GreenwashingRisk Risk                  `json:"greenwashing_risk"`
	ScopeBreakdown   emissions.ScopeTotals `json:"scope_breakdown"`
	GreenScore       float64               `json:"green_score"`
	DataQuality      emissions.DataQuality `json:"data_quality"`
	MeanConfidence   float64               `json:"mean_confidence"`
	RecordCount      int                   `json:"record_count"`
	Flags            []Flag                `json:"flags"`
	Recommendations  []string              `json:"recommendations"`
}

// HasFlag reports whether the assessment raised code
func (a Assessment) HasFlag(code FlagCode) bool {
	for _, f := range a.Flags {
		if f.Code == code {
			return true
		}
	}
	return false
}

// Run is an immutable, append-only verification record for a subject
type Run struct {
	ID        uuid.UUID `json:"id"`
	SubjectID string    `json:"subject_id"`
	Assessment
	CreditEligibility credits.Eligibility      `json:"credit_eligibility"`
	CCTSEligible      bool                     `json:"ccts_eligible"`
	CBAMCompliant     bool                     `json:"cbam_compliant"`
	Frameworks        []compliance.FrameworkID `json:"frameworks"`
	Disclaimer        string                   `json:"disclaimer"`
	ContentHash       string                   `json:"content_hash"`
	CreatedAt         time.Time                `json:"created_at"`
}
