// Package telemetry exposes process-local prometheus metrics for
// indexing, synchronization and query activity. Nothing is reported
// externally; hosts decide whether to mount an exposition endpoint.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DocsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treedex_docs_indexed_total",
			Help: "Resources indexed into catalogs, by catalog type.",
		},
		[]string{"catalog_type"},
	)
	DocsUnindexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treedex_docs_unindexed_total",
			Help: "Resources removed from catalogs, by catalog type.",
		},
		[]string{"catalog_type"},
	)
	IndexFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treedex_index_failures_total",
			Help: "Resources whose indexing reported per-index failures.",
		},
		[]string{"catalog_type"},
	)
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treedex_sync_runs_total",
			Help: "Catalog synchronization runs by outcome.",
		},
		[]string{"status"},
	)
	QueriesExecuted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treedex_queries_total",
			Help: "Boolean queries executed.",
		},
	)
	CatalogCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "treedex_catalogs",
			Help: "Catalog instances currently managed by the engine.",
		},
	)
)
