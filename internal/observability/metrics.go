// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Scan metrics
	ScansTotal       *prometheus.CounterVec
	ScanDuration     prometheus.Histogram
	VenueFetchErrors *prometheus.CounterVec
	PoolsObserved    prometheus.Gauge

	// Cache metrics
	CacheHits        prometheus.Gauge
	CacheMisses      prometheus.Gauge
	CacheEvictions   prometheus.Gauge
	CacheExpirations prometheus.Gauge
	CacheSize        prometheus.Gauge

	// Detection metrics
	OpportunitiesFound *prometheus.CounterVec
	SignalsEmitted     prometheus.Counter
	TopSignalScore     prometheus.Gauge

	// Pattern metrics
	PatternsRecorded prometheus.Counter

	// Archive metrics
	ArchiveWrites prometheus.Counter
	ArchiveErrors prometheus.Counter

	// Feed metrics
	WSMessagesReceived prometheus.Counter
	WSReconnects       prometheus.Counter

	// HTTP metrics
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulScan prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "dex_signals"
	}

	return &Metrics{
		// Scan metrics
		ScansTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "runs_total",
			Help:      "Total number of venue scans by status",
		}, []string{"status"}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Venue scan duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		VenueFetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "venue_errors_total",
			Help:      "Total number of venue fetch failures by venue",
		}, []string{"venue"}),
		PoolsObserved: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "pools_observed",
			Help:      "Pool count of the most recent snapshot",
		}),

		// Cache metrics
		CacheHits: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cumulative cache hits",
		}),
		CacheMisses: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cumulative cache misses",
		}),
		CacheEvictions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Cumulative LRU evictions",
		}),
		CacheExpirations: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "expirations_total",
			Help:      "Cumulative TTL expirations",
		}),
		CacheSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "size",
			Help:      "Current cache entry count",
		}),

		// Detection metrics
		OpportunitiesFound: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detect",
			Name:      "opportunities_total",
			Help:      "Total opportunities detected by source",
		}, []string{"source"}),
		SignalsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detect",
			Name:      "signals_emitted_total",
			Help:      "Total ranked signals emitted",
		}),
		TopSignalScore: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "detect",
			Name:      "top_signal_score",
			Help:      "Composite score of the highest-ranked signal in the last batch",
		}),

		// Pattern metrics
		PatternsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pattern",
			Name:      "recorded_total",
			Help:      "Total pattern outcomes recorded",
		}),

		// Archive metrics
		ArchiveWrites: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "writes_total",
			Help:      "Total opportunity batches archived",
		}),
		ArchiveErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "errors_total",
			Help:      "Total archive write failures",
		}),

		// Feed metrics
		WSMessagesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "ws_messages_total",
			Help:      "Total account notifications received over WebSocket",
		}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "ws_reconnects_total",
			Help:      "Total WebSocket reconnect attempts",
		}),

		// HTTP metrics
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by endpoint and status",
		}, []string{"endpoint", "status"}),

		// Health metrics
		LastSuccessfulScan: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_scan_timestamp",
			Help:      "Unix timestamp of the last successful scan",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordScan records one scan run with its duration.
func RecordScan(ok bool, seconds float64) {
	status := "ok"
	if !ok {
		status = "error"
	}
	DefaultMetrics.ScansTotal.WithLabelValues(status).Inc()
	DefaultMetrics.ScanDuration.Observe(seconds)
}

// RecordVenueError increments the fetch failure counter for a venue.
func RecordVenueError(venue string) {
	DefaultMetrics.VenueFetchErrors.WithLabelValues(venue).Inc()
}

// RecordOpportunities counts detected opportunities by source.
func RecordOpportunities(source string, n int) {
	if n > 0 {
		DefaultMetrics.OpportunitiesFound.WithLabelValues(source).Add(float64(n))
	}
}

// RecordWSMessage increments the WebSocket message counter.
func RecordWSMessage() {
	DefaultMetrics.WSMessagesReceived.Inc()
}

// RecordWSReconnect increments the WebSocket reconnect counter.
func RecordWSReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}
