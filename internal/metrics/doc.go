// Package metrics provides Prometheus instrumentation for the book library.
//
// All collectors are registered with promauto at package initialisation and
// are prefixed with "book_library_". They are grouped as follows:
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//
// ## Database Metrics
//
//   - DBQueryTotal, DBQueryDuration by operation
//   - DBTransactionDuration for commits and rollbacks
//   - DBConnectionsOpen, DBSizeBytes
//
// ## Indexer Metrics
//
// Scans and reconciliation runs:
//   - IndexerRunsTotal, IndexerLastRunTimestamp, IndexerLastRunDuration, IndexerIsRunning
//   - ScannerEntitiesScanned, ScannerDirectoriesSkipped, ScannerAnalysisDuration
//   - ReconcileChangesTotal, ReconcileFailuresTotal by entity and action
//
// ## Tree Cache, Render and Worker Pool Metrics
//
//   - TreeCacheRebuildsTotal, TreeCacheRebuildDuration, TreeCacheEntities
//   - RenderGenerationsTotal, RenderGenerationDuration, RenderCacheHits, RenderCacheMisses
//   - WorkerPoolWorkers, WorkerPoolActiveTasks, WorkerPoolTasksTotal, WorkerPoolDedupShared
//
// ## Filesystem and Memory Metrics
//
// Filesystem metrics are recorded through the filesystem.Observer returned by
// NewFilesystemObserver, which keeps the filesystem package free of a
// dependency on Prometheus.
//
// ## Library Metrics
//
// The Collector polls a StatsProvider (the database) on an interval and
// publishes library totals such as LibraryBooksTotal and LibraryFavoritesTotal.
package metrics
