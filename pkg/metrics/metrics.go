// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping.
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

	QueriesTotal      *prometheus.CounterVec
	QueryLatency      *prometheus.HistogramVec
	QueryResultsCount prometheus.Histogram
	CacheHitsTotal    prometheus.Counter
	CacheMissesTotal  prometheus.Counter

	FeedsTotal          *prometheus.CounterVec
	UpdatesAppliedTotal prometheus.Counter
	UpdatesExpiredTotal prometheus.Counter
	PostingCount        prometheus.Gauge
	ExpireTableSize     prometheus.Gauge
	UpdateQueueDepth    prometheus.Gauge
	SnapshotOpsTotal    *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
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
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queries_total",
				Help: "Total queries executed, by outcome (hit, miss, error).",
			},
			[]string{"outcome"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "query_latency_seconds",
				Help:    "Query execution latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
			},
			[]string{"cache_status"},
		),
		QueryResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "query_results_count",
				Help:    "Number of results returned per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		FeedsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feeds_total",
				Help: "Total feed calls, by outcome (accepted, queue_full, stopped, invalid).",
			},
			[]string{"outcome"},
		),
		UpdatesAppliedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "updates_applied_total",
				Help: "Total changeset edits published by apply.",
			},
		),
		UpdatesExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "updates_expired_total",
				Help: "Total postings removed by expiration or stress-shedding.",
			},
		),
		PostingCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "posting_count",
				Help: "Current number of (term, doc) postings held by the index.",
			},
		),
		ExpireTableSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "expire_table_size",
				Help: "Current number of (term, doc) pairs tracked for expiration.",
			},
		),
		UpdateQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "update_queue_depth",
				Help: "Current number of jobs buffered in the update pipeline's queue.",
			},
		),
		SnapshotOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapshot_ops_total",
				Help: "Total snapshot dump/restore operations, by op and status.",
			},
			[]string{"op", "status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.FeedsTotal,
		m.UpdatesAppliedTotal,
		m.UpdatesExpiredTotal,
		m.PostingCount,
		m.ExpireTableSize,
		m.UpdateQueueDepth,
		m.SnapshotOpsTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
