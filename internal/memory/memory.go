package memory

import (
	"context"
	"errors"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"book-library/internal/logging"
	"book-library/internal/metrics"
)

// ErrStopped is returned by Wait after Stop has been called.
var ErrStopped = errors.New("memory monitor stopped")

// Config sets the monitor thresholds as fractions of the limit.
type Config struct {
	// Limit in bytes. Zero uses the runtime soft limit, if any.
	Limit int64

	// Resume is the usage below which paused work continues.
	Resume float64

	// Pause is the usage at or above which new work waits.
	Pause float64

	Interval time.Duration
}

// DefaultConfig pauses at 85% of the limit and resumes below 70%,
// sampling every five seconds.
func DefaultConfig() Config {
	return Config{Resume: 0.7, Pause: 0.85, Interval: 5 * time.Second}
}

// Usage is one heap sample.
type Usage struct {
	Alloc  uint64
	Limit  int64
	Paused bool
}

// Ratio returns Alloc as a fraction of Limit, zero without a limit.
func (u Usage) Ratio() float64 {
	if u.Limit <= 0 {
		return 0
	}
	return float64(u.Alloc) / float64(u.Limit)
}

// Monitor samples heap usage and holds back render work while the heap is
// close to its limit.
type Monitor struct {
	config Config

	mu    sync.Mutex
	usage Usage
	// open is closed while work may proceed and replaced on pause.
	open chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a monitor. Without an explicit or runtime limit it
// never pauses.
func NewMonitor(config Config) *Monitor {
	limit := config.Limit
	if limit == 0 {
		if rt := debug.SetMemoryLimit(-1); rt > 0 && rt < 1<<62 {
			limit = rt
		}
	}
	if limit == 0 {
		logging.Warn("No memory limit configured, render backpressure disabled")
	} else {
		logging.Info("Memory monitor limit: %s", FormatBytes(limit))
	}

	open := make(chan struct{})
	close(open)
	return &Monitor{
		config: config,
		usage:  Usage{Limit: limit},
		open:   open,
		stop:   make(chan struct{}),
	}
}

// Start samples in the background until Stop.
func (m *Monitor) Start() {
	if m.usage.Limit == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sample()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends sampling and releases every waiter with ErrStopped.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) sample() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	m.update(stats.Alloc)
}

func (m *Monitor) update(alloc uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.usage.Alloc = alloc
	ratio := m.usage.Ratio()
	metrics.MemoryUsageRatio.Set(ratio)

	switch {
	case !m.usage.Paused && ratio >= m.config.Pause:
		logging.Warn("Heap at %.1f%% of limit, pausing render work", ratio*100)
		m.usage.Paused = true
		m.open = make(chan struct{})
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case m.usage.Paused && ratio < m.config.Resume:
		logging.Info("Heap at %.1f%% of limit, resuming render work", ratio*100)
		m.usage.Paused = false
		close(m.open)
		metrics.MemoryPaused.Set(0)
	}
}

// Wait returns immediately unless work is paused, in which case it blocks
// until usage recovers, ctx ends or the monitor stops.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.Lock()
	open := m.open
	m.mu.Unlock()

	select {
	case <-open:
		return nil
	default:
	}
	select {
	case <-open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stop:
		return ErrStopped
	}
}

// Usage returns the latest sample.
func (m *Monitor) Usage() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}
