package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"book-library/internal/logging"
	"book-library/internal/metrics"
)

// ErrPoolClosed is returned by Submit after Shutdown has started.
var ErrPoolClosed = errors.New("worker pool is shut down")

// Throttle lets a task wait for resources before it runs.
// memory.Monitor satisfies it.
type Throttle interface {
	Wait(ctx context.Context) error
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	// Enabled runs tasks on pool workers. When false, tasks run inline on
	// the submitting goroutine (deduplication still applies).
	Enabled bool

	// MaxWorkers bounds concurrent tasks. Zero means ForCPU(0).
	MaxWorkers int

	// IdleTimeout reclaims the workers after this long with no active
	// task. Zero or negative keeps them until Shutdown.
	IdleTimeout time.Duration

	// Throttle, if set, is consulted before each task starts.
	Throttle Throttle
}

// Pool is a lazily started, bounded worker pool for CPU-heavy rendering.
//
// Workers are created on the first Submit and reclaimed after IdleTimeout
// only while no task is active, so an in-flight render is never stranded.
// Shutdown waits for every submitted task before stopping the workers.
type Pool struct {
	config PoolConfig

	mu        sync.Mutex
	tasks     chan *task
	active    int
	closed    bool
	idleTimer *time.Timer
	idleGen   uint64

	pending sync.WaitGroup // submitted, unfinished tasks
	running sync.WaitGroup // live worker goroutines

	group singleflight.Group
}

type task struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// NewPool creates a pool. No goroutines start until the first Submit.
func NewPool(config PoolConfig) *Pool {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = ForCPU(0)
	}
	return &Pool{config: config}
}

// Submit runs fn on a worker and waits for its result. If ctx ends first,
// Submit returns ctx.Err() while the task, once started, runs to completion.
func (p *Pool) Submit(ctx context.Context, fn func(context.Context) error) error {
	t := &task{ctx: ctx, fn: fn, done: make(chan error, 1)}

	if !p.config.Enabled {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return ErrPoolClosed
		}
		p.acquireLocked()
		p.mu.Unlock()
		p.run(t)
		return <-t.done
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if p.tasks == nil {
		p.startLocked()
	}
	p.acquireLocked()
	ch := p.tasks
	p.mu.Unlock()

	// The channel cannot be closed while this task is counted as active.
	select {
	case ch <- t:
	case <-ctx.Done():
		p.release()
		metrics.WorkerPoolTasksTotal.WithLabelValues("canceled").Inc()
		return ctx.Err()
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on pool p, sharing one execution among concurrent callers
// that use the same key. The shared execution is detached from any single
// caller's cancellation, so one caller giving up does not fail the others.
func Do[T any](ctx context.Context, p *Pool, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	ch := p.group.DoChan(key, func() (interface{}, error) {
		var out T
		err := p.Submit(context.WithoutCancel(ctx), func(taskCtx context.Context) error {
			var err error
			out, err = fn(taskCtx)
			return err
		})
		return out, err
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.WorkerPoolDedupShared.Inc()
		}
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(T)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Active returns the number of submitted tasks that have not finished.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Running reports whether worker goroutines are currently alive.
func (p *Pool) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tasks != nil
}

// Shutdown stops accepting tasks, waits for every submitted task to
// finish, and then stops the workers. It returns ctx.Err() if ctx ends
// before the pool has drained.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.stopIdleTimerLocked()
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.pending.Wait()

		p.mu.Lock()
		if p.tasks != nil {
			close(p.tasks)
			p.tasks = nil
		}
		p.mu.Unlock()

		p.running.Wait()
		metrics.WorkerPoolWorkers.Set(0)
		close(drained)
	}()

	select {
	case <-drained:
		logging.Info("Worker pool shut down")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) startLocked() {
	p.tasks = make(chan *task, p.config.MaxWorkers)
	for i := 0; i < p.config.MaxWorkers; i++ {
		p.running.Add(1)
		go p.worker(p.tasks)
	}
	metrics.WorkerPoolWorkers.Set(float64(p.config.MaxWorkers))
	logging.Debug("Worker pool started with %d workers", p.config.MaxWorkers)
}

func (p *Pool) worker(tasks <-chan *task) {
	defer p.running.Done()
	for t := range tasks {
		p.run(t)
	}
}

// run executes one task and always releases its slot.
func (p *Pool) run(t *task) {
	defer p.release()

	if p.config.Throttle != nil {
		if err := p.config.Throttle.Wait(t.ctx); err != nil {
			metrics.WorkerPoolTasksTotal.WithLabelValues("canceled").Inc()
			t.done <- err
			return
		}
	}
	if err := t.ctx.Err(); err != nil {
		metrics.WorkerPoolTasksTotal.WithLabelValues("canceled").Inc()
		t.done <- err
		return
	}

	err := safeCall(t.ctx, t.fn)
	if err != nil {
		metrics.WorkerPoolTasksTotal.WithLabelValues("error").Inc()
	} else {
		metrics.WorkerPoolTasksTotal.WithLabelValues("ok").Inc()
	}
	t.done <- err
}

func safeCall(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker task panicked: %v", r)
			logging.Error("%v", err)
		}
	}()
	return fn(ctx)
}

func (p *Pool) acquireLocked() {
	p.active++
	p.pending.Add(1)
	p.stopIdleTimerLocked()
	metrics.WorkerPoolActiveTasks.Set(float64(p.active))
}

func (p *Pool) release() {
	p.mu.Lock()
	p.active--
	metrics.WorkerPoolActiveTasks.Set(float64(p.active))
	if p.active == 0 && !p.closed && p.tasks != nil && p.config.IdleTimeout > 0 {
		p.idleGen++
		gen := p.idleGen
		p.idleTimer = time.AfterFunc(p.config.IdleTimeout, func() { p.reclaim(gen) })
	}
	p.mu.Unlock()
	p.pending.Done()
}

func (p *Pool) stopIdleTimerLocked() {
	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}
	p.idleGen++
}

// reclaim stops idle workers. A later Submit starts a fresh set.
func (p *Pool) reclaim(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.idleGen || p.closed || p.tasks == nil || p.active > 0 {
		return
	}
	close(p.tasks)
	p.tasks = nil
	p.idleTimer = nil
	metrics.WorkerPoolWorkers.Set(0)
	metrics.WorkerPoolReclaims.Inc()
	logging.Debug("Worker pool reclaimed after %v idle", p.config.IdleTimeout)
}
