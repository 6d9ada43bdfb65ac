// Package filesystem wraps the os calls the library makes against a
// possibly NFS-mounted tree.
//
// StatWithRetry, OpenWithRetry and ReadDirWithRetry retry only on ESTALE,
// backing off exponentially within a RetryConfig. Any other error is
// returned after the first attempt.
//
//	entries, err := filesystem.ReadDirWithRetry(dir, filesystem.DefaultRetryConfig())
//
// Every call is reported to the Observer installed with SetObserver,
// labelled with the volume (library, cache or database) that a
// VolumeResolver assigns to its path.
package filesystem
