// Package indexer scans the library directory and reconciles the result
// into the database.
//
// A run has three stages:
//   - Scan: Scanner walks the library root with an explicit stack and
//     classifies every directory. Folders with subfolders, or with PDFs
//     beside other files, become categories. Leaf folders holding only
//     page images become image books attached to their parent, and each
//     PDF becomes a PDF book. Page dimensions are then sampled on a small
//     worker set to pick a display strategy.
//   - Reconcile: Reconciler diffs the scanned tree against stored rows by
//     ID, adding, updating and deleting books and categories and
//     re-inserting every tree edge. A failure on one entity is reported
//     and the rest of the batch continues.
//   - Rebuild: the tree cache is rebuilt from the database.
//
// Only one run executes at a time per process, and a lock file in the
// data directory keeps processes that share a database from running
// concurrently. SyncStream reports progress as events that always end
// with exactly one completion event.
//
// Hidden files and directories (prefixed with '.') are never scanned.
package indexer
