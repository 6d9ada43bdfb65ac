package database

import (
	"context"
	"time"

	"book-library/internal/library"
	"book-library/internal/metrics"
)

// GetStats counts the stored library entities. RenderCacheBytes is left
// zero; the render cache is not tracked here.
func (d *Database) GetStats(ctx context.Context) (metrics.Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var s metrics.Stats
	err = d.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM books WHERE type = ?),
			(SELECT COUNT(*) FROM books WHERE type = ?),
			(SELECT COUNT(*) FROM categories),
			(SELECT COUNT(*) FROM books WHERE is_favorite = 1),
			(SELECT COUNT(*) FROM custom_categories),
			(SELECT COUNT(*) FROM books WHERE optimization_strategy >= ?)
	`, library.ImageBook, library.PDFBook, library.StrategySuggestCompression).Scan(
		&s.ImageBooks, &s.PDFBooks, &s.Categories, &s.Favorites, &s.CustomCategories, &s.OptimizationNeeded,
	)
	return s, err
}

// Counts returns the number of stored categories and books.
func (d *Database) Counts(ctx context.Context) (library.ScanCounts, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var c library.ScanCounts
	err := d.db.QueryRowContext(ctx,
		"SELECT (SELECT COUNT(*) FROM categories), (SELECT COUNT(*) FROM books)",
	).Scan(&c.Categories, &c.Books)
	return c, err
}
