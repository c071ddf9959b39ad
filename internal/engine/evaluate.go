package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"carbon-scribe/verification-engine/internal/compliance"
	"carbon-scribe/verification-engine/internal/credits"
	"carbon-scribe/verification-engine/internal/emissions"
	"carbon-scribe/verification-engine/internal/tiers"
	"carbon-scribe/verification-engine/internal/verification"
	"carbon-scribe/verification-engine/pkg/security"
)

// EvaluateRequest is one scoring pass over a subject's evidence
type EvaluateRequest struct {
	SubjectID          string
	Evidence           []emissions.Evidence
	Profile            compliance.OrganizationProfile
	Frameworks         []compliance.FrameworkID
	IoTAdjusted        bool
	ReductionClaim     *verification.ReductionClaim
	ExternalGreenScore *float64
	Tier               tiers.Tier
}

// Evaluator composes the scorer, the credit engine and the framework mapper into a
// single VerificationRun. It holds no state besides its configuration.
type Evaluator struct {
	scorer  *verification.Scorer
	credits *credits.Engine
	now     func() time.Time
}

// NewEvaluator creates an evaluator
func NewEvaluator(scorer *verification.Scorer, creditEngine *credits.Engine) *Evaluator {
	if scorer == nil {
		scorer = verification.DefaultScorer()
	}
	if creditEngine == nil {
		creditEngine = credits.DefaultEngine()
	}
	return &Evaluator{scorer: scorer, credits: creditEngine, now: time.Now}
}

// Evaluate produces a new run. The only failure is an unknown framework override.
func (e *Evaluator) Evaluate(req EvaluateRequest) (*verification.Run, error) {
	resolution, err := compliance.Resolve(req.Profile.Normalize(), req.Frameworks)
	if err != nil {
		return nil, err
	}

	assessment := e.scorer.Score(verification.Input{
		Evidence:           req.Evidence,
		IoTAdjusted:        req.IoTAdjusted,
		ReductionClaim:     req.ReductionClaim,
		ExternalGreenScore: req.ExternalGreenScore,
	})

	verified := assessment.Status == verification.StatusVerified
	caps := req.Tier.Capabilities()

	run := &verification.Run{
		ID:                uuid.New(),
		SubjectID:         req.SubjectID,
		Assessment:        assessment,
		CreditEligibility: e.credits.Evaluate(uncreditedCo2Kg(req.Evidence), assessment.Score, verified),
		Frameworks:        resolution.Frameworks,
		Disclaimer:        resolution.Disclaimer,
		CreatedAt:         e.now().UTC().Truncate(time.Microsecond),
	}
	run.CCTSEligible = caps.CCTSAssessment && verified &&
		resolution.Contains(compliance.IndiaCCTS) &&
		assessment.GreenwashingRisk != verification.RiskHigh
	run.CBAMCompliant = caps.CBAMAssessment &&
		resolution.Contains(compliance.CBAM) &&
		cbamEvidenceComplete(req.Evidence)

	hash, err := RunHash(run)
	if err != nil {
		return nil, err
	}
	run.ContentHash = hash
	return run, nil
}

// uncreditedCo2Kg is the credit basis of a run: records an earlier verified run
// has already credited are excluded.
func uncreditedCo2Kg(evidence []emissions.Evidence) float64 {
	var total float64
	for _, ev := range evidence {
		if !ev.Record.Verified {
			total += ev.Record.Co2Kg
		}
	}
	return total
}

// creditedRecordIDs lists the records a verified run over this evidence credits
func creditedRecordIDs(evidence []emissions.Evidence) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(evidence))
	for _, ev := range evidence {
		if !ev.Record.Verified {
			ids = append(ids, ev.Record.ID)
		}
	}
	return ids
}

// cbamEvidenceComplete requires every record to be classified and to cite its factor
func cbamEvidenceComplete(evidence []emissions.Evidence) bool {
	if len(evidence) == 0 {
		return false
	}
	for _, ev := range evidence {
		if ev.Method == emissions.MethodUnverifiable || !ev.Record.HasEmissionFactor() {
			return false
		}
	}
	return true
}

// RunHash hashes the run content. Ownership is excluded so a session merge does not
// invalidate the hash; the hash field itself is blanked.
func RunHash(run *verification.Run) (string, error) {
	content := *run
	content.SubjectID = ""
	content.ContentHash = ""
	content.CreatedAt = content.CreatedAt.UTC()
	hash, err := security.ContentHash(content)
	if err != nil {
		return "", fmt.Errorf("failed to hash run: %w", err)
	}
	return hash, nil
}

// VerifyRun checks that a stored run still matches its content hash
func VerifyRun(run *verification.Run) error {
	hash, err := RunHash(run)
	if err != nil {
		return err
	}
	if hash != run.ContentHash {
		return fmt.Errorf("%w: run %s", ErrTamperedRun, run.ID)
	}
	return nil
}
