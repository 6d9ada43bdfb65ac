package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"book-library/internal/library"
	"book-library/internal/logging"
	"book-library/internal/media"
	"book-library/internal/metrics"
)

// LockFileName is created in the data directory while a scan runs so two
// processes sharing a database never reconcile at the same time.
const LockFileName = "scan.lock"

var (
	// ErrScanInProgress is returned when a scan is already running in this
	// or another process.
	ErrScanInProgress = errors.New("scan already in progress")

	// ErrStopped is returned for scans requested after Stop.
	ErrStopped = errors.New("indexer stopped")
)

// Store is the persistence the indexer reads from and reconciles into.
type Store interface {
	ReconcileStore
	GetAllCategories(ctx context.Context) ([]*library.Category, error)
	GetAllBooks(ctx context.Context) ([]*library.Book, error)
	Counts(ctx context.Context) (library.ScanCounts, error)
	SetLastScan(ctx context.Context, t time.Time) error
}

// Cache is rebuilt after every run.
type Cache interface {
	Rebuild(ctx context.Context) error
}

// Config configures an Indexer.
type Config struct {
	// RootPath is the library directory to scan.
	RootPath string
	// DataDir holds the cross-process scan lock. Empty disables the lock.
	DataDir string
	// Scanner configures the filesystem walk.
	Scanner ScannerConfig
}

// Progress describes the scan in flight, if any.
type Progress struct {
	Running   bool      `json:"running"`
	Phase     string    `json:"phase,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// Status is a point-in-time view of the indexer.
type Status struct {
	Progress
	StartTime  time.Time           `json:"start_time"`
	Uptime     string              `json:"uptime"`
	LastRun    time.Time           `json:"last_run,omitempty"`
	LastResult *library.SyncResult `json:"last_result,omitempty"`
	LastError  string              `json:"last_error,omitempty"`
}

// Phases reported in Progress.
const (
	PhaseScanning    = "scanning"
	PhaseReconciling = "reconciling"
	PhaseRebuilding  = "rebuilding"
)

// Indexer runs scan and reconcile cycles, one at a time.
type Indexer struct {
	store      Store
	cache      Cache
	pdf        media.PDFInspector
	reconciler *Reconciler

	configMu sync.RWMutex
	config   Config

	indexMu    sync.Mutex
	isIndexing bool
	stopped    bool
	running    sync.WaitGroup
	lastRun    time.Time
	lastResult *library.SyncResult
	lastError  string
	startTime  time.Time

	progress atomic.Value // Progress
}

// New creates an Indexer. pdf, covers and cleaner may be nil.
func New(store Store, cache Cache, pdf media.PDFInspector, covers CoverGenerator, cleaner CacheCleaner, config Config) *Indexer {
	idx := &Indexer{
		store:      store,
		cache:      cache,
		pdf:        pdf,
		reconciler: NewReconciler(store, covers, cleaner),
		config:     config,
		startTime:  time.Now(),
	}
	idx.progress.Store(Progress{})
	return idx
}

// Configure replaces the root path and scanner settings used by the next
// run. A run in progress keeps the configuration it started with.
func (idx *Indexer) Configure(rootPath string, scanner ScannerConfig) {
	idx.configMu.Lock()
	defer idx.configMu.Unlock()
	idx.config.RootPath = rootPath
	idx.config.Scanner = scanner
}

func (idx *Indexer) currentConfig() Config {
	idx.configMu.RLock()
	defer idx.configMu.RUnlock()
	return idx.config
}

// Sync scans the library, reconciles the store and rebuilds the cache.
func (idx *Indexer) Sync(ctx context.Context) (library.SyncResult, error) {
	return idx.run(ctx, nil)
}

// SyncStream is Sync reporting progress through emit. The last event is
// always exactly one EventComplete whose status is StatusOK or
// StatusError.
func (idx *Indexer) SyncStream(ctx context.Context, emit Emitter) (library.SyncResult, error) {
	var completed bool
	guarded := func(ev library.Event) {
		if completed {
			return
		}
		if ev.Type == library.EventComplete {
			completed = true
		}
		emit(ev)
	}

	res, err := idx.run(ctx, guarded)
	if !completed {
		status, msg := library.StatusOK, "Scan finished."
		if err != nil {
			status, msg = library.StatusError, "Scan failed: "+err.Error()
		}
		guarded(library.Event{Type: library.EventComplete, Message: msg, Status: status})
	}
	return res, err
}

func (idx *Indexer) run(ctx context.Context, emit Emitter) (library.SyncResult, error) {
	if err := idx.tryStartIndexing(); err != nil {
		logging.Info("Scan request rejected: %v", err)
		return library.SyncResult{}, err
	}
	defer idx.finishIndexing()

	cfg := idx.currentConfig()

	unlock, err := acquireScanLock(cfg.DataDir)
	if err != nil {
		idx.recordRun(library.SyncResult{}, err)
		return library.SyncResult{}, err
	}
	defer unlock()

	metrics.IndexerIsRunning.Set(1)
	defer metrics.IndexerIsRunning.Set(0)

	start := time.Now()
	idx.setPhase(PhaseScanning, start)

	res, err := idx.syncOnce(ctx, cfg, emit, start)

	// The cache always reflects the store after a run, including failed ones.
	idx.setPhase(PhaseRebuilding, start)
	if rebuildErr := idx.cache.Rebuild(context.WithoutCancel(ctx)); rebuildErr != nil {
		logging.Error("Tree cache rebuild failed: %v", rebuildErr)
		if err == nil {
			err = fmt.Errorf("rebuild tree cache: %w", rebuildErr)
		}
	}

	duration := time.Since(start)
	metrics.IndexerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.IndexerLastRunDuration.Set(duration.Seconds())

	if err != nil {
		metrics.IndexerRunsTotal.WithLabelValues("error").Inc()
		logging.Error("Scan failed after %v: %v", duration, err)
		emit.complete(library.StatusError, "Scan failed: %v", err)
		idx.recordRun(res, err)
		return res, err
	}

	metrics.IndexerRunsTotal.WithLabelValues("ok").Inc()
	if err := idx.store.SetLastScan(ctx, time.Now()); err != nil {
		logging.Warn("Failed to record last scan time: %v", err)
	}
	if res.Synced.Changed() {
		emit.complete(library.StatusOK, "Scan finished. Detected changes: %s", describeChanges(res.Synced))
	} else {
		emit.complete(library.StatusOK, "Scan finished. No changes detected.")
	}
	logging.Info("Scan complete in %v: scanned %d categories, %d books; stored %d categories, %d books",
		duration, res.Scanned.Categories, res.Scanned.Books, res.Database.Categories, res.Database.Books)
	idx.recordRun(res, nil)
	return res, nil
}

func (idx *Indexer) syncOnce(ctx context.Context, cfg Config, emit Emitter, start time.Time) (library.SyncResult, error) {
	var res library.SyncResult

	emit.send(library.EventInfo, "Starting file system scan...")
	scanner := NewScanner(cfg.Scanner, idx.pdf)
	root, err := scanner.Scan(ctx, cfg.RootPath)
	if err != nil {
		return res, err
	}

	categories, books := library.Flatten(root)
	res.Scanned = library.ScanCounts{Categories: len(categories), Books: len(books)}
	emit.send(library.EventInfo, "Found %d categories and %d books", res.Scanned.Categories, res.Scanned.Books)

	idx.setPhase(PhaseReconciling, start)
	persistedCategories, err := idx.store.GetAllCategories(ctx)
	if err != nil {
		return res, fmt.Errorf("load stored categories: %w", err)
	}
	persistedBooks, err := idx.store.GetAllBooks(ctx)
	if err != nil {
		return res, fmt.Errorf("load stored books: %w", err)
	}

	out, err := idx.reconciler.Reconcile(ctx, root, persistedCategories, persistedBooks, emit)
	res.Synced = out.Synced
	if err != nil {
		return res, err
	}
	if out.Failures > 0 {
		emit.send(library.EventWarn, "%d operations failed during synchronization", out.Failures)
	}

	counts, err := idx.store.Counts(ctx)
	if err != nil {
		return res, fmt.Errorf("count stored entities: %w", err)
	}
	res.Database = counts
	return res, nil
}

func (e Emitter) complete(status, format string, args ...any) {
	if e != nil {
		e(library.Event{Type: library.EventComplete, Message: fmt.Sprintf(format, args...), Status: status})
	}
}

func describeChanges(c library.SyncCounts) string {
	var parts []string
	add := func(n int, what string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, what))
		}
	}
	add(c.AddedCategories, "categories added")
	add(c.DeletedCategories, "categories deleted")
	add(c.AddedBooks, "books added")
	add(c.UpdatedBooks, "books updated")
	add(c.DeletedBooks, "books deleted")
	return strings.Join(parts, ", ")
}

// acquireScanLock takes the data directory's scan lock without blocking.
func acquireScanLock(dataDir string) (func(), error) {
	if dataDir == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data directory: %v", library.ErrIOFailure, err)
	}

	lock := flock.New(filepath.Join(dataDir, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: scan lock: %v", library.ErrIOFailure, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: held by another process", ErrScanInProgress)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logging.Warn("Failed to release scan lock: %v", err)
		}
	}, nil
}

// tryStartIndexing marks a run as started unless one is already running
// or the indexer is stopped.
func (idx *Indexer) tryStartIndexing() error {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	if idx.stopped {
		return ErrStopped
	}
	if idx.isIndexing {
		return ErrScanInProgress
	}
	idx.isIndexing = true
	idx.running.Add(1)
	return nil
}

func (idx *Indexer) finishIndexing() {
	idx.progress.Store(Progress{})

	idx.indexMu.Lock()
	idx.isIndexing = false
	idx.indexMu.Unlock()
	idx.running.Done()
}

func (idx *Indexer) setPhase(phase string, started time.Time) {
	idx.progress.Store(Progress{Running: true, Phase: phase, StartedAt: started})
}

func (idx *Indexer) recordRun(res library.SyncResult, err error) {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	idx.lastRun = time.Now()
	if err != nil {
		idx.lastError = err.Error()
		return
	}
	idx.lastError = ""
	idx.lastResult = &res
}

// IsIndexing returns whether a run is in progress.
func (idx *Indexer) IsIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.isIndexing
}

// GetProgress returns the progress of the current run.
func (idx *Indexer) GetProgress() Progress {
	if p, ok := idx.progress.Load().(Progress); ok {
		return p
	}
	return Progress{}
}

// GetStatus returns the indexer status.
func (idx *Indexer) GetStatus() Status {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	return Status{
		Progress:   idx.GetProgress(),
		StartTime:  idx.startTime,
		Uptime:     time.Since(idx.startTime).Round(time.Second).String(),
		LastRun:    idx.lastRun,
		LastResult: idx.lastResult,
		LastError:  idx.lastError,
	}
}

// TriggerSync starts a background Sync. It is a no-op while a run is in
// progress.
func (idx *Indexer) TriggerSync(ctx context.Context) {
	go func() {
		if _, err := idx.Sync(ctx); err != nil && !errors.Is(err, ErrScanInProgress) && !errors.Is(err, ErrStopped) {
			logging.Error("Background sync failed: %v", err)
		}
	}()
}

// Stop rejects new runs and waits for the current one, if any, until ctx
// ends.
func (idx *Indexer) Stop(ctx context.Context) error {
	idx.indexMu.Lock()
	idx.stopped = true
	idx.indexMu.Unlock()

	done := make(chan struct{})
	go func() {
		idx.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("Indexer stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
