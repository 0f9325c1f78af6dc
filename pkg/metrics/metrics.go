// Package metrics defines the Prometheus metric collectors used by the
// builder and the searcher and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	StageDuration        *prometheus.HistogramVec
	StageFailuresTotal   *prometheus.CounterVec
	RecordsSkippedTotal  *prometheus.CounterVec
	RebuildsTotal        *prometheus.CounterVec
	SnapshotGeneration   prometheus.Gauge
	SnapshotDocuments    prometheus.Gauge
	SnapshotTerms        prometheus.Gauge
	SimilarityPairs      prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec

	reg prometheus.Registerer
}

// New creates all collectors and registers them with reg. Passing
// prometheus.DefaultRegisterer exposes them on Handler; tests pass a fresh
// prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reg: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, miss, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Duration of each rebuild stage in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"stage"},
		),
		StageFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_stage_failures_total",
				Help: "Total rebuild stage failures by stage.",
			},
			[]string{"stage"},
		),
		RecordsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_records_skipped_total",
				Help: "Corpus records rejected during a rebuild, by reason.",
			},
			[]string{"reason"},
		),
		RebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_rebuilds_total",
				Help: "Total rebuilds by status.",
			},
			[]string{"status"},
		),
		SnapshotGeneration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "snapshot_generation",
				Help: "Generation of the active snapshot.",
			},
		),
		SnapshotDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "snapshot_documents",
				Help: "Number of documents in the active snapshot.",
			},
		),
		SnapshotTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "snapshot_terms",
				Help: "Number of distinct terms in the active snapshot.",
			},
		),
		SimilarityPairs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "snapshot_similarity_pairs",
				Help: "Number of stored speaker similarity pairs in the active snapshot.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.StageDuration,
		m.StageFailuresTotal,
		m.RecordsSkippedTotal,
		m.RebuildsTotal,
		m.SnapshotGeneration,
		m.SnapshotDocuments,
		m.SnapshotTerms,
		m.SimilarityPairs,
		m.CircuitBreakerState,
	)

	return m
}

// ObservePool exposes the open and idle connections of a client pool. Both
// funcs are read at scrape time.
func (m *Metrics) ObservePool(pool string, open, idle func() float64) {
	labels := prometheus.Labels{"pool": pool}
	m.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "pool_open_connections",
			Help:        "Open connections in a client pool.",
			ConstLabels: labels,
		}, open),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "pool_idle_connections",
			Help:        "Idle connections in a client pool.",
			ConstLabels: labels,
		}, idle),
	)
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
