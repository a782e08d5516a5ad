package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics for the research engine, scoped
// to the operations this service actually performs: federated searches,
// ingestion jobs, sessions, and tool invocations.
type Metrics struct {
	// SearchesStarted counts federated searches started, labeled by provider.
	SearchesStarted *prometheus.CounterVec

	// SearchesFailed counts provider-level search failures, labeled by provider.
	SearchesFailed *prometheus.CounterVec

	// SearchDuration observes federated search duration in seconds.
	SearchDuration prometheus.Histogram

	// SearchCacheHits counts aggregator cache hits.
	SearchCacheHits prometheus.Counter

	// SearchCacheMisses counts aggregator cache misses.
	SearchCacheMisses prometheus.Counter

	// IngestionJobsEnqueued counts ingestion jobs enqueued.
	IngestionJobsEnqueued prometheus.Counter

	// IngestionJobsSucceeded counts ingestion jobs that reached succeeded.
	IngestionJobsSucceeded prometheus.Counter

	// IngestionJobsFailed counts ingestion jobs that reached failed.
	IngestionJobsFailed prometheus.Counter

	// IngestionJobDuration observes job duration in seconds from running to terminal.
	IngestionJobDuration prometheus.Histogram

	// ParserAttempts counts parser-chain attempts, labeled by parser name and outcome.
	ParserAttempts *prometheus.CounterVec

	// ToolInvocations counts tool dispatcher invocations, labeled by tool name and outcome.
	ToolInvocations *prometheus.CounterVec

	// ToolDuration observes tool dispatcher invocation duration, labeled by tool name.
	ToolDuration *prometheus.HistogramVec

	// SessionsActive reports the current number of open stateful sessions.
	SessionsActive prometheus.Gauge

	// SessionsCreated counts sessions created.
	SessionsCreated prometheus.Counter

	// SessionsEvicted counts sessions removed, labeled by reason. The session
	// manager reports every removal (TTL, capacity, client close, shutdown) as "evicted".
	SessionsEvicted *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with every series registered under
// namespace via promauto.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SearchesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of provider search calls started, labeled by provider.",
		}, []string{"provider"}),
		SearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of provider search calls that failed, labeled by provider.",
		}, []string{"provider"}),
		SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of a federated searchGraph call in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SearchCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_hits_total",
			Help:      "Total number of aggregator cache hits.",
		}),
		SearchCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_misses_total",
			Help:      "Total number of aggregator cache misses.",
		}),
		IngestionJobsEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_jobs_enqueued_total",
			Help:      "Total number of ingestion jobs enqueued.",
		}),
		IngestionJobsSucceeded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_jobs_succeeded_total",
			Help:      "Total number of ingestion jobs that reached the succeeded state.",
		}),
		IngestionJobsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_jobs_failed_total",
			Help:      "Total number of ingestion jobs that reached the failed state.",
		}),
		IngestionJobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_job_duration_seconds",
			Help:      "Duration of an ingestion job from running to a terminal state.",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		ParserAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parser_attempts_total",
			Help:      "Total number of parser-chain attempts, labeled by parser and outcome.",
		}, []string{"parser", "outcome"}),
		ToolInvocations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_invocations_total",
			Help:      "Total number of tool dispatcher invocations, labeled by tool and outcome.",
		}, []string{"tool", "outcome"}),
		ToolDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Duration of a tool dispatcher invocation in seconds, labeled by tool.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"tool"}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Current number of open stateful sessions.",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of stateful sessions created.",
		}),
		SessionsEvicted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Total number of stateful sessions removed, labeled by reason.",
		}, []string{"reason"}),
	}
}

// RecordSearchStarted records that a provider search call started.
func (m *Metrics) RecordSearchStarted(provider string) {
	m.SearchesStarted.WithLabelValues(provider).Inc()
}

// RecordSearchFailed records that a provider search call failed.
func (m *Metrics) RecordSearchFailed(provider string) {
	m.SearchesFailed.WithLabelValues(provider).Inc()
}

// RecordSearchCompleted records a completed searchGraph call's duration.
func (m *Metrics) RecordSearchCompleted(durationSeconds float64) {
	m.SearchDuration.Observe(durationSeconds)
}

// RecordCacheHit records an aggregator cache hit.
func (m *Metrics) RecordCacheHit() { m.SearchCacheHits.Inc() }

// RecordCacheMiss records an aggregator cache miss.
func (m *Metrics) RecordCacheMiss() { m.SearchCacheMisses.Inc() }

// RecordIngestionEnqueued records a newly enqueued ingestion job.
func (m *Metrics) RecordIngestionEnqueued() { m.IngestionJobsEnqueued.Inc() }

// RecordIngestionSucceeded records a job reaching the succeeded state.
func (m *Metrics) RecordIngestionSucceeded(durationSeconds float64) {
	m.IngestionJobsSucceeded.Inc()
	m.IngestionJobDuration.Observe(durationSeconds)
}

// RecordIngestionFailed records a job reaching the failed state.
func (m *Metrics) RecordIngestionFailed(durationSeconds float64) {
	m.IngestionJobsFailed.Inc()
	m.IngestionJobDuration.Observe(durationSeconds)
}

// RecordParserAttempt records one parser-chain attempt's outcome ("success" or "failure").
func (m *Metrics) RecordParserAttempt(parser, outcome string) {
	m.ParserAttempts.WithLabelValues(parser, outcome).Inc()
}

// RecordToolInvocation records a dispatcher invocation's outcome ("success" or "error").
func (m *Metrics) RecordToolInvocation(tool, outcome string, durationSeconds float64) {
	m.ToolInvocations.WithLabelValues(tool, outcome).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(durationSeconds)
}

// RecordSessionCreated records a newly created stateful session and updates the active gauge.
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionRemoved records a session removal for the given reason and updates the active gauge.
func (m *Metrics) RecordSessionRemoved(reason string) {
	m.SessionsEvicted.WithLabelValues(reason).Inc()
	m.SessionsActive.Dec()
}
