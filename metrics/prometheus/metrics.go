// Package prometheus provides Prometheus metrics for the voxmux
// routing core.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "voxmux"

var (
	// requestDuration is a histogram of backend invocation duration in seconds.
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of backend invocations in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"capability", "backend"},
	)

	// requestsTotal is a counter of backend invocations.
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of backend invocations",
		},
		[]string{"capability", "backend", "status"}, // status: ok, error
	)

	// cacheLookupsTotal is a counter of response cache lookups.
	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Total number of response cache lookups",
		},
		[]string{"capability", "result"}, // result: hit, miss
	)

	// quotaUsed is a gauge of today's consumed quota per backend.
	quotaUsed = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_used",
			Help:      "Quota units consumed today per backend",
		},
		[]string{"backend"},
	)

	// quotaLimit is a gauge of the configured daily limit per backend.
	quotaLimit = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_limit",
			Help:      "Configured daily quota limit per backend (0 = unlimited)",
		},
		[]string{"backend"},
	)

	// fallbackDepth is a histogram of how many backends were passed
	// over before one produced a result.
	fallbackDepth = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fallback_depth",
			Help:      "Number of backends skipped or failed before success",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 8},
		},
		[]string{"capability"},
	)

	// allMetrics is the list registered with an exporter.
	allMetrics = []prometheus.Collector{
		requestDuration,
		requestsTotal,
		cacheLookupsTotal,
		quotaUsed,
		quotaLimit,
		fallbackDepth,
	}
)

// Recorder feeds routing measurements into the package metrics. It
// satisfies the router's Observer contract.
type Recorder struct{}

// NewRecorder returns a metrics recorder for wiring into the router.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ObserveRequest records one backend invocation.
func (*Recorder) ObserveRequest(capability, backend, status string, latency time.Duration) {
	requestDuration.WithLabelValues(capability, backend).Observe(latency.Seconds())
	requestsTotal.WithLabelValues(capability, backend, status).Inc()
}

// ObserveCacheLookup records a cache hit or miss.
func (*Recorder) ObserveCacheLookup(capability string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(capability, result).Inc()
}

// ObserveFallbackDepth records how deep the backend walk went.
func (*Recorder) ObserveFallbackDepth(capability string, depth int) {
	fallbackDepth.WithLabelValues(capability).Observe(float64(depth))
}

// SetQuotaUsage updates the quota gauges for a backend.
func (*Recorder) SetQuotaUsage(backend string, used, limit int) {
	quotaUsed.WithLabelValues(backend).Set(float64(used))
	quotaLimit.WithLabelValues(backend).Set(float64(limit))
}
