// Package metrics exposes Prometheus instrumentation for FileDB's
// read/write pipeline: lock contention, cache freshness, and the
// latency of each façade operation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Façade operation metrics
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedb_operations_total",
			Help: "Total number of façade operations by kind and outcome",
		},
		[]string{"operation", "outcome"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filedb_operation_duration_seconds",
			Help:    "Façade operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Cache metrics
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "filedb_cache_hits_total",
			Help: "Reads served from a cache entry whose checksum matched Storage",
		},
	)

	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "filedb_cache_misses_total",
			Help: "Reads that required a download because the cache was absent or stale",
		},
	)

	CacheBytesDownloaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "filedb_cache_bytes_downloaded_total",
			Help: "Total bytes pulled from Storage into the local cache",
		},
	)

	// Lock metrics
	LockWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filedb_lock_wait_seconds",
			Help:    "Time spent acquiring a cache lock",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"role"},
	)

	LockConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedb_lock_conflicts_total",
			Help: "Lock acquisitions that failed because a live holder was found",
		},
		[]string{"role"},
	)

	StaleLocksReclaimedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedb_stale_locks_reclaimed_total",
			Help: "Sibling lock files ignored because their owning process was dead or recycled",
		},
		[]string{"role"},
	)

	// Index/Storage metrics
	IndexUpsertRacesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "filedb_index_upsert_races_total",
			Help: "Key-id upserts that lost the unique-index race and re-read the winner",
		},
	)

	OrphanedBlobsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "filedb_orphaned_blobs_total",
			Help: "Storage blobs orphaned because Move or Delete removed the Index record but the Storage delete failed",
		},
	)
)

func init() {
	prometheus.MustRegister(
		OperationsTotal,
		OperationDuration,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheBytesDownloaded,
		LockWaitDuration,
		LockConflictsTotal,
		StaleLocksReclaimedTotal,
		IndexUpsertRacesTotal,
		OrphanedBlobsTotal,
	)
}

// Handler returns the Prometheus HTTP handler for a /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing façade operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
