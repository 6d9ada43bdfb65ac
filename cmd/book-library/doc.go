// Package main is the book library server.
//
// It serves a folder of books (PDF files and folders of page images) as a
// browsable tree over a JSON HTTP API. The filesystem is the source of
// truth: a sync walks the library root, reconciles the result into
// SQLite and rebuilds the in-memory tree that answers reads.
//
// # Application Lifecycle
//
//  1. Memory: GOMEMLIMIT from MEMORY_LIMIT or the environment
//  2. Configuration: .env, environment variables and the settings file
//  3. Database: SQLite in WAL mode
//  4. Components: libvips, memory monitor, worker pool, renderer,
//     tree cache and indexer
//  5. First sync in the background when auto_scan_on_startup is set,
//     otherwise the tree is built from the database
//  6. HTTP API on PORT and Prometheus metrics on METRICS_PORT
//  7. Graceful shutdown on SIGINT/SIGTERM
//
// # Middleware
//
// Requests pass CORS, W3C access logging, Prometheus request metrics and
// gzip compression, in that order.
//
// # Shutdown
//
// The indexer stops accepting runs and the running one is cancelled.
// The HTTP servers then drain, the worker pool finishes pending renders,
// PDF conversions are killed, libvips is shut down and the database is
// closed. Each step shares a 30 second budget.
package main
