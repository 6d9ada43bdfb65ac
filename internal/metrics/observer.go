package metrics

import "book-library/internal/filesystem"

type filesystemObserver struct{}

// NewFilesystemObserver returns the filesystem.Observer that feeds the
// Filesystem* collectors.
func NewFilesystemObserver() filesystem.Observer {
	return filesystemObserver{}
}

func (filesystemObserver) ObserveOperation(op filesystem.Operation) {
	FilesystemOperationDuration.WithLabelValues(op.Volume, op.Name).Observe(op.Duration.Seconds())
	if op.Err != nil {
		FilesystemOperationErrors.WithLabelValues(op.Volume, op.Name).Inc()
	}
}

func (filesystemObserver) ObserveRetry(event filesystem.RetryEvent, name, volume string) {
	FilesystemRetryEvents.WithLabelValues(name, volume, event.String()).Inc()
}
