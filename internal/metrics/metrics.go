// Package metrics provides Prometheus metrics for the size engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Aggregation metrics
	aggregationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diskdash_aggregations_total",
			Help: "Total number of directory aggregations by outcome",
		},
		[]string{"outcome"},
	)

	aggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "diskdash_aggregation_duration_seconds",
			Help:    "Time spent walking a directory tree",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	aggregatedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "diskdash_aggregated_bytes_total",
			Help: "Total bytes summed by completed aggregations",
		},
	)

	// Scheduler metrics
	pendingRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "diskdash_pending_requests",
			Help: "Number of paths currently being aggregated",
		},
	)

	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diskdash_size_requests_total",
			Help: "Size requests by result (dispatched, duplicate, rejected)",
		},
		[]string{"result"},
	)

	workerPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "diskdash_worker_panics_total",
			Help: "Aggregation workers that panicked",
		},
	)

	// Cache metrics
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diskdash_size_cache_lookups_total",
			Help: "Size cache lookups by result (hit, miss, stale)",
		},
		[]string{"result"},
	)

	cacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "diskdash_size_cache_invalidated_entries_total",
			Help: "Cache entries dropped by delete invalidation",
		},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "diskdash_size_cache_entries",
			Help: "Number of entries held in the size cache",
		},
	)

	// Listing metrics
	listingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diskdash_listings_total",
			Help: "Directory listings by result (ok, empty, inaccessible)",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAggregation records a finished aggregation.
func RecordAggregation(outcome string, d time.Duration, bytes int64) {
	aggregationsTotal.WithLabelValues(outcome).Inc()
	aggregationDuration.Observe(d.Seconds())
	if bytes > 0 {
		aggregatedBytes.Add(float64(bytes))
	}
}

// RecordRequest records a size request decision.
func RecordRequest(result string) {
	requestsTotal.WithLabelValues(result).Inc()
}

// SetPending sets the pending request gauge.
func SetPending(n int) {
	pendingRequests.Set(float64(n))
}

// RecordWorkerPanic increments the worker panic counter.
func RecordWorkerPanic() {
	workerPanics.Inc()
}

// RecordCacheLookup records a size cache lookup.
func RecordCacheLookup(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}

// RecordInvalidation records entries removed by an invalidation.
func RecordInvalidation(n int) {
	if n > 0 {
		cacheInvalidations.Add(float64(n))
	}
}

// SetCacheEntries sets the size cache entry gauge.
func SetCacheEntries(n int) {
	cacheEntries.Set(float64(n))
}

// RecordListing records a directory listing.
func RecordListing(result string) {
	listingsTotal.WithLabelValues(result).Inc()
}
