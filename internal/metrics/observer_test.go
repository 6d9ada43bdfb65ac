package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"book-library/internal/filesystem"
)

func TestFilesystemObserver(t *testing.T) {
	obs := NewFilesystemObserver()

	errorsBefore := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("library", "open"))
	obs.ObserveOperation(filesystem.Operation{Name: "open", Volume: "library", Duration: time.Millisecond})
	obs.ObserveOperation(filesystem.Operation{Name: "open", Volume: "library", Err: errors.New("boom")})
	if got := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("library", "open")) - errorsBefore; got != 1 {
		t.Errorf("errors increased by %v, want 1", got)
	}

	stale := FilesystemRetryEvents.WithLabelValues("stat", "cache", "stale")
	before := testutil.ToFloat64(stale)
	obs.ObserveRetry(filesystem.RetryStale, "stat", "cache")
	obs.ObserveRetry(filesystem.RetryStale, "stat", "cache")
	if got := testutil.ToFloat64(stale) - before; got != 2 {
		t.Errorf("stale events increased by %v, want 2", got)
	}
}
