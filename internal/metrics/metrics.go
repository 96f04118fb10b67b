// Package metrics registers the Prometheus collectors for retrieval and
// ingestion. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Degradation label values.
const (
	DegradedEnrichment = "enrichment"
	DegradedKeywords   = "keywords"
)

// Metrics holds every collector owned by the engine.
type Metrics struct {
	// retrievalsTotal counts Retrieve calls by strategy and outcome.
	retrievalsTotal *prometheus.CounterVec

	// retrievalDuration records Retrieve latency by strategy.
	retrievalDuration *prometheus.HistogramVec

	// stageErrors counts unrecovered failures by stage (embed, vector, keyword, ...).
	stageErrors *prometheus.CounterVec

	// degradedTotal counts soft fallbacks.
	degradedTotal *prometheus.CounterVec

	// lowSimilarity counts vector passes whose best hit fell under the
	// warning level.
	lowSimilarity prometheus.Counter

	// ingestedChunks counts chunks stored by Ingest.
	ingestedChunks prometheus.Counter

	// deletedChunks counts chunks removed, by scope (document, owner).
	deletedChunks *prometheus.CounterVec
}

// New registers all collectors against reg. Pass a fresh
// prometheus.NewRegistry() in tests to keep them hermetic.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		retrievalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docrecall",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total number of Retrieve calls, partitioned by strategy and outcome.",
		}, []string{"strategy", "outcome"}),

		retrievalDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docrecall",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of Retrieve calls.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"strategy"}),

		stageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docrecall",
			Subsystem: "retrieval",
			Name:      "stage_errors_total",
			Help:      "Unrecovered retrieval failures, partitioned by stage.",
		}, []string{"stage"}),

		degradedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docrecall",
			Subsystem: "retrieval",
			Name:      "degraded_total",
			Help:      "Soft fallbacks taken during retrieval, partitioned by kind.",
		}, []string{"kind"}),

		lowSimilarity: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docrecall",
			Subsystem: "search",
			Name:      "low_similarity_total",
			Help:      "Vector searches whose best similarity was below the warning level.",
		}),

		ingestedChunks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docrecall",
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Chunks stored by Ingest.",
		}),

		deletedChunks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docrecall",
			Subsystem: "ingest",
			Name:      "deleted_chunks_total",
			Help:      "Chunks deleted, partitioned by scope.",
		}, []string{"scope"}),
	}
}

// ObserveRetrieval records one finished Retrieve call.
func (m *Metrics) ObserveRetrieval(strategy, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.retrievalsTotal.WithLabelValues(strategy, outcome).Inc()
	m.retrievalDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// StageError counts an unrecovered failure in stage.
func (m *Metrics) StageError(stage string) {
	if m == nil {
		return
	}
	m.stageErrors.WithLabelValues(stage).Inc()
}

// Degraded counts a soft fallback of the given kind.
func (m *Metrics) Degraded(kind string) {
	if m == nil {
		return
	}
	m.degradedTotal.WithLabelValues(kind).Inc()
}

// LowSimilarity counts a weak vector result set.
func (m *Metrics) LowSimilarity() {
	if m == nil {
		return
	}
	m.lowSimilarity.Inc()
}

// ChunksIngested adds n stored chunks.
func (m *Metrics) ChunksIngested(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ingestedChunks.Add(float64(n))
}

// ChunksDeleted adds n removed chunks under scope.
func (m *Metrics) ChunksDeleted(scope string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.deletedChunks.WithLabelValues(scope).Add(float64(n))
}
