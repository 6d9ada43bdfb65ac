// Package settings holds the user-editable library settings: the library
// root, the recognised image extensions, the dimension thresholds used to
// pick an optimization strategy, render sizes and the worker pool knobs.
//
// Settings are persisted as YAML and validated with go-playground/validator
// on load and on every update. A Store is safe for concurrent use; readers
// always receive a copy.
package settings
