// Package metrics exposes Prometheus collectors for the count engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesFetchedTotal counts upstream pages fetched, by edge kind
	// and direction.
	PagesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followgraph_pages_fetched_total",
			Help: "Upstream ledger pages fetched.",
		},
		[]string{"kind", "direction"},
	)

	// UpstreamErrorsTotal counts failed upstream calls.
	UpstreamErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "followgraph_upstream_errors_total",
			Help: "Upstream ledger calls that failed.",
		},
	)

	// CacheHitsTotal counts graph cache hits.
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "followgraph_cache_hits_total",
			Help: "Graph cache reads that returned a snapshot.",
		},
	)

	// CacheMissesTotal counts graph cache misses.
	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "followgraph_cache_misses_total",
			Help: "Graph cache reads that found no snapshot.",
		},
	)

	// CacheErrorsTotal counts swallowed cache store errors.
	CacheErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "followgraph_cache_errors_total",
			Help: "Graph cache store errors handled fail-open.",
		},
	)

	// SnapshotWritesTotal counts snapshot writes into the cache.
	SnapshotWritesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "followgraph_snapshot_writes_total",
			Help: "Graph snapshots written to the cache.",
		},
	)

	// BackfillRunsTotal counts backfill enumeration runs.
	BackfillRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "followgraph_backfill_runs_total",
			Help: "Backfill enumeration runs triggered.",
		},
	)

	// BackfillBatchesTotal counts processed backfill batches.
	BackfillBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "followgraph_backfill_batches_total",
			Help: "Backfill batches processed.",
		},
	)

	// BackfillSubjectsTotal counts per-subject backfill outcomes.
	BackfillSubjectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followgraph_backfill_subjects_total",
			Help: "Backfill subject outcomes.",
		},
		[]string{"result"},
	)

	// CountDuration observes online count latency by strategy.
	CountDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "followgraph_count_duration_seconds",
			Help:    "Online count operation latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)
)
