// Package database persists the book library in SQLite.
//
// It stores:
//   - books, categories and the parent/child relations between them
//   - favorite flags
//   - user-curated custom categories and their memberships
//   - small key/value metadata such as the last scan time
//
// The database uses WAL mode for concurrent reads and creates or migrates
// its schema on open. Errors are reported with the sentinels of the
// library package: ErrNotFound, ErrDuplicateID and ErrInvalidState.
package database
