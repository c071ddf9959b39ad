package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"carbon-scribe/verification-engine/internal/verification"
)

// Metrics are the Prometheus instruments of the verification service
type Metrics struct {
	runsTotal      *prometheus.CounterVec
	scores         prometheus.Histogram
	creditsIssued  prometheus.Counter
	recordsIngest  prometheus.Counter
	mergesTotal    prometheus.Counter
	evaluateErrors prometheus.Counter
}

// NewMetrics registers the instruments on reg. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verification",
			Name:      "runs_total",
			Help:      "Verification runs created, by status.",
		}, []string{"status"}),
		scores: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "verification",
			Name:      "score",
			Help:      "Distribution of verification scores.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.75, 0.8, 0.9, 1},
		}),
		creditsIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "verification",
			Name:      "eligible_credits_total",
			Help:      "Whole credits made eligible by verified runs.",
		}),
		recordsIngest: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "verification",
			Name:      "records_ingested_total",
			Help:      "Emission records stored from extracted documents.",
		}),
		mergesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "verification",
			Name:      "subject_merges_total",
			Help:      "Anonymous sessions merged into accounts.",
		}),
		evaluateErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "verification",
			Name:      "evaluate_errors_total",
			Help:      "Evaluations that failed before a run was stored.",
		}),
	}
}

func (m *Metrics) observeRun(run *verification.Run) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(string(run.Status)).Inc()
	if run.Status != verification.StatusNoData {
		m.scores.Observe(run.Score)
	}
	m.creditsIssued.Add(float64(run.CreditEligibility.EligibleCredits))
}

func (m *Metrics) observeIngest(records int) {
	if m == nil {
		return
	}
	m.recordsIngest.Add(float64(records))
}

func (m *Metrics) observeMerge() {
	if m == nil {
		return
	}
	m.mergesTotal.Inc()
}

func (m *Metrics) observeError() {
	if m == nil {
		return
	}
	m.evaluateErrors.Inc()
}
