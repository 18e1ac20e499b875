/*
Package metrics exposes Prometheus instrumentation for the FileDB
read/write pipeline.

# Core Components

Façade metrics:
  - filedb_operations_total{operation,outcome}: count by operation (read/write/copy/move/delete/find, cache_crc32) and outcome (ok/error, not_found on read, locked on read/write)
  - filedb_operation_duration_seconds{operation}: latency histogram

Cache metrics:
  - filedb_cache_hits_total / filedb_cache_misses_total
  - filedb_cache_bytes_downloaded_total

Lock metrics:
  - filedb_lock_wait_seconds{role}: time spent acquiring a read/write lock
  - filedb_lock_conflicts_total{role}: acquisitions that hit a live holder
  - filedb_stale_locks_reclaimed_total{role}: sibling locks ignored as stale

Index/Storage metrics:
  - filedb_index_upsert_races_total: key-id upserts that lost the unique-index race
  - filedb_orphaned_blobs_total: blobs orphaned when Move or Delete removed the Index record but the Storage delete failed

# Usage

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDurationVec(metrics.OperationDuration, "read")
	}()

	http.Handle("/metrics", metrics.Handler())

# Design Patterns

Metrics are package-level prometheus collectors registered once in
init(), mirroring how the façade, cache, and lock packages are used:
call sites increment/observe directly rather than going through an
injected collector object.
*/
package metrics
