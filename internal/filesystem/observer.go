package filesystem

import (
	"sync/atomic"
	"time"
)

// RetryEvent is one step in the life of a retried operation.
type RetryEvent int

const (
	// RetryStale means an attempt failed with ESTALE.
	RetryStale RetryEvent = iota
	// RetryScheduled means another attempt follows after a backoff.
	RetryScheduled
	// RetryRecovered means an attempt after a stale handle succeeded.
	RetryRecovered
	// RetryExhausted means the retry budget ran out.
	RetryExhausted
)

func (e RetryEvent) String() string {
	switch e {
	case RetryStale:
		return "stale"
	case RetryScheduled:
		return "scheduled"
	case RetryRecovered:
		return "recovered"
	case RetryExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Operation describes a finished filesystem call, retries included.
type Operation struct {
	Name     string // stat, open or readdir
	Volume   string
	Duration time.Duration
	Err      error
}

// Observer receives filesystem measurements. The metrics package provides
// the Prometheus implementation.
type Observer interface {
	ObserveOperation(op Operation)
	ObserveRetry(event RetryEvent, name, volume string)
}

type observerBox struct{ Observer }

var observer atomic.Pointer[observerBox]

// SetObserver installs o for all subsequent operations. nil disables
// observation.
func SetObserver(o Observer) {
	if o == nil {
		observer.Store(nil)
		return
	}
	observer.Store(&observerBox{o})
}

func currentObserver() Observer {
	if box := observer.Load(); box != nil {
		return box.Observer
	}
	return nil
}
