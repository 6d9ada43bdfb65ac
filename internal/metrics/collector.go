package metrics

import (
	"context"
	"sync"
	"time"

	"book-library/internal/logging"
)

// StatsProvider supplies library totals for periodic publication.
type StatsProvider interface {
	GetStats(ctx context.Context) (Stats, error)
}

// Stats holds the current library totals.
type Stats struct {
	ImageBooks         int
	PDFBooks           int
	Categories         int
	Favorites          int
	CustomCategories   int
	OptimizationNeeded int
	RenderCacheBytes   int64
}

// TotalBooks returns the number of books of either type.
func (s Stats) TotalBooks() int {
	return s.ImageBooks + s.PDFBooks
}

// Collector publishes library totals on a fixed interval.
type Collector struct {
	provider StatsProvider
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewCollector creates a collector polling provider every interval.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{provider: provider, interval: interval, done: make(chan struct{})}
}

// Start collects once immediately and then on every tick until Stop.
func (c *Collector) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.run(ctx)
}

// Stop ends collection and waits for an in-flight poll to finish. Extra
// calls, or a call without Start, do nothing.
func (c *Collector) Stop() {
	c.once.Do(func() {
		if c.cancel == nil {
			return
		}
		c.cancel()
		<-c.done
	})
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.collectCtx(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Collector) collect() {
	c.collectCtx(context.Background())
}

func (c *Collector) collectCtx(ctx context.Context) {
	if c.provider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.interval)
	defer cancel()

	stats, err := c.provider.GetStats(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logging.Warn("Library stats collection failed: %v", err)
		}
		return
	}
	publish(stats)
}

func publish(s Stats) {
	LibraryBooksTotal.WithLabelValues("image_book").Set(float64(s.ImageBooks))
	LibraryBooksTotal.WithLabelValues("pdf_book").Set(float64(s.PDFBooks))
	LibraryCategoriesTotal.Set(float64(s.Categories))
	LibraryFavoritesTotal.Set(float64(s.Favorites))
	LibraryCustomCategoriesTotal.Set(float64(s.CustomCategories))
	LibraryOptimizationNeeded.Set(float64(s.OptimizationNeeded))
	RenderCacheSizeBytes.Set(float64(s.RenderCacheBytes))

	logging.Debug("Library stats: %d books, %d categories, %d favorites",
		s.TotalBooks(), s.Categories, s.Favorites)
}
