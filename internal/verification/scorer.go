package verification

import (
	"fmt"
	"math"

	"carbon-scribe/verification-engine/internal/emissions"
)

// methodScores is the verification credit of each classification method
var methodScores = map[emissions.ClassificationMethod]float64{
	emissions.MethodHSN:          1.0,
	emissions.MethodKeyword:      0.5,
	emissions.MethodUnverifiable: 0.0,
}

var qualityValues = map[emissions.DataQuality]float64{
	emissions.QualityHigh:   1.0,
	emissions.QualityMedium: 0.5,
	emissions.QualityLow:    0.0,
}

var flagRecommendations = map[FlagCode]string{
	FlagMissingBaseline:     "Document a baseline period before claiming reductions.",
	FlagFactorNotCited:      "Cite the emission factor source (e.g. CEA grid factor, DEFRA, IPCC) for every record.",
	FlagMissingActivityData: "Record activity data (kWh, litres, tonne-km) alongside each emission figure.",
	FlagLowConfidence:       "Re-upload clearer copies of low-confidence documents or enter the figures manually.",
	FlagUnverifiableShare:   "Replace unverifiable line items with documents carrying HSN codes or itemised quantities.",
	FlagScopeConflict:       "Review line items whose stated scope disagrees with their category.",
	FlagMixedMethodology:    "Standardise on one classification methodology across documents.",
}

// Scorer produces an Assessment from a batch of records. It holds only configuration
// and is safe for concurrent use.
type Scorer struct {
	weights    Weights
	thresholds Thresholds
}

// NewScorer validates the configuration and creates a scorer
func NewScorer(weights Weights, thresholds Thresholds) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: weights, thresholds: thresholds}, nil
}

// DefaultScorer returns a scorer with the production weights and thresholds
func DefaultScorer() *Scorer {
	return &Scorer{weights: DefaultWeights(), thresholds: DefaultThresholds()}
}

// Thresholds returns the scorer's thresholds
func (s *Scorer) Thresholds() Thresholds {
	return s.thresholds
}

// batchStats are the per-batch sums the rules are evaluated against
type batchStats struct {
	count           int
	totals          emissions.ScopeTotals
	byCategory      map[emissions.Category]float64
	confidenceSum   float64
	methodSum       float64
	provenanceSum   float64
	qualityWeighted float64
	qualitySum      float64
	unverifiableKg  float64
	missingFactor   int
	missingActivity int
	lowConfidence   int
	scopeConflicts  int
	methods         map[emissions.ClassificationMethod]bool
}

// Score evaluates the batch. An empty batch yields StatusNoData with a zero score.
func (s *Scorer) Score(in Input) Assessment {
	if len(in.Evidence) == 0 {
		return Assessment{
			Status:           StatusNoData,
			GreenwashingRisk: RiskLow,
			DataQuality:      emissions.QualityLow,
			GreenScore:       externalGreenScore(in.ExternalGreenScore, 0),
			Flags:            []Flag{},
			Recommendations:  []string{"Upload utility bills, fuel receipts or supplier invoices to start verification."},
		}
	}

	st := s.collect(in.Evidence)
	n := float64(st.count)

	meanConfidence := st.confidenceSum / n
	methodScore := st.methodSum / n
	provenance := st.provenanceSum / n

	w := s.weights
	score := (w.Confidence*meanConfidence + w.Methodology*methodScore + w.Provenance*provenance) / w.sum()
	score = round4(clamp(score, 0, 1))

	total := st.totals.Total()
	net := total
	if in.IoTAdjusted {
		net = total * (1 - s.thresholds.IoTAdjustment)
	}

	a := Assessment{
		TotalCo2Kg:     total,
		NetCo2Kg:       net,
		Score:          score,
		Status:         s.thresholds.StatusFor(score),
		ScopeBreakdown: st.totals,
		GreenScore:     externalGreenScore(in.ExternalGreenScore, math.Round(score*100)),
		DataQuality:    qualityLabel(st),
		MeanConfidence: round4(meanConfidence),
		RecordCount:    st.count,
	}

	a.Flags = s.flags(st, in.ReductionClaim, total)
	a.GreenwashingRisk = s.risk(st, in.ReductionClaim, total, provenance)
	a.Recommendations = s.recommendations(a.Flags, st, total)

	return a
}

func (s *Scorer) collect(evidence []emissions.Evidence) batchStats {
	st := batchStats{
		count:      len(evidence),
		byCategory: make(map[emissions.Category]float64),
		methods:    make(map[emissions.ClassificationMethod]bool),
	}

	for _, ev := range evidence {
		r := ev.Record
		kg := r.Co2Kg
		if kg < 0 {
			kg = 0
		}

		method := ev.Method
		if _, ok := methodScores[method]; !ok {
			method = emissions.MethodUnverifiable
		}
		confidence := clamp(ev.Confidence, 0, 1)

		st.totals.Add(r.Scope, kg)
		st.byCategory[r.Category] += kg
		st.confidenceSum += confidence
		st.methodSum += methodScores[method]
		st.methods[method] = true

		provenance := 0.0
		if r.HasActivityData() {
			provenance += 0.5
		} else {
			st.missingActivity++
		}
		if r.HasEmissionFactor() {
			provenance += 0.5
		} else {
			st.missingFactor++
		}
		st.provenanceSum += provenance

		quality := qualityValues[emissions.EffectiveQuality(r, r.DataQuality)]
		st.qualityWeighted += quality * kg
		st.qualitySum += quality

		if method == emissions.MethodUnverifiable {
			st.unverifiableKg += kg
		}
		if confidence < s.thresholds.LowConfidence {
			st.lowConfidence++
		}
		if ev.ScopeConflict {
			st.scopeConflicts++
		}
	}
	return st
}

func (s *Scorer) flags(st batchStats, claim *ReductionClaim, total float64) []Flag {
	flags := []Flag{}

	if claim != nil && !claim.HasBaseline() {
		flags = append(flags, Flag{
			Code:    FlagMissingBaseline,
			Message: fmt.Sprintf("reduction claim of %.2f kg CO2e has no documented baseline", claim.ClaimedKg),
		})
	}
	if st.missingFactor > 0 {
		flags = append(flags, Flag{
			Code:    FlagFactorNotCited,
			Message: fmt.Sprintf("%d of %d records do not cite an emission factor source", st.missingFactor, st.count),
		})
	}
	if st.missingActivity > 0 {
		flags = append(flags, Flag{
			Code:    FlagMissingActivityData,
			Message: fmt.Sprintf("%d of %d records have no activity data", st.missingActivity, st.count),
		})
	}
	if st.lowConfidence > 0 {
		flags = append(flags, Flag{
			Code: FlagLowConfidence,
			Message: fmt.Sprintf("%d of %d records have extraction confidence below %.2f",
				st.lowConfidence, st.count, s.thresholds.LowConfidence),
		})
	}
	if share := shareOf(st.unverifiableKg, total); share > s.thresholds.UnverifiableShare {
		flags = append(flags, Flag{
			Code: FlagUnverifiableShare,
			Message: fmt.Sprintf("unverifiable line items account for %.1f%% of total CO2e (limit %.0f%%)",
				share*100, s.thresholds.UnverifiableShare*100),
		})
	}
	if st.scopeConflicts > 0 {
		flags = append(flags, Flag{
			Code:    FlagScopeConflict,
			Message: fmt.Sprintf("%d records state a scope that differs from their category scope", st.scopeConflicts),
		})
	}
	if len(st.methods) > 1 {
		flags = append(flags, Flag{
			Code:    FlagMixedMethodology,
			Message: "records were classified with more than one methodology",
		})
	}
	return flags
}

func (s *Scorer) risk(st batchStats, claim *ReductionClaim, total, provenance float64) Risk {
	if claim != nil && !claim.HasBaseline() {
		return RiskHigh
	}
	if shareOf(st.unverifiableKg, total) > s.thresholds.UnverifiableShare {
		return RiskHigh
	}
	if len(st.methods) > 1 || provenance < 0.5 {
		return RiskMedium
	}
	return RiskLow
}

func (s *Scorer) recommendations(flags []Flag, st batchStats, total float64) []string {
	recs := make([]string, 0, len(flags)+2)
	for _, f := range flags {
		recs = append(recs, flagRecommendations[f.Code])
	}

	if total <= 0 {
		return recs
	}
	dominant := s.thresholds.DominantShare
	if shareOf(st.totals.Scope2, total) > dominant {
		recs = append(recs, "Scope 2 dominates your footprint: consider renewable energy certificates (RECs) or a green power tariff.")
	}
	if shareOf(st.totals.Scope1, total) > dominant {
		recs = append(recs, "Scope 1 dominates your footprint: evaluate fuel switching or electrification of on-site combustion.")
	}
	if shareOf(st.byCategory[emissions.CategoryTransport], total) > dominant {
		recs = append(recs, "Transport is your largest source: optimise logistics routes, load factors and modal mix.")
	}
	return recs
}

// qualityLabel is the CO2e-weighted effective quality of the batch
func qualityLabel(st batchStats) emissions.DataQuality {
	var value float64
	if total := st.totals.Total(); total > 0 {
		value = st.qualityWeighted / total
	} else {
		value = st.qualitySum / float64(st.count)
	}

	switch {
	case value >= 0.75:
		return emissions.QualityHigh
	case value >= 0.4:
		return emissions.QualityMedium
	default:
		return emissions.QualityLow
	}
}

func externalGreenScore(external *float64, fallback float64) float64 {
	if external == nil || math.IsNaN(*external) {
		return fallback
	}
	return clamp(*external, 0, 100)
}

func shareOf(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return part / total
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
