package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"book-library/internal/library"
	"book-library/internal/logging"
	"book-library/internal/mediatypes"
	"book-library/internal/metrics"
	"book-library/internal/transcoder"
	"book-library/internal/workers"
)

const (
	coverQuality     = 85
	thumbnailQuality = 80

	// DefaultCoverWidth is used when no cover width is configured.
	DefaultCoverWidth = 300
)

// RendererConfig configures a Renderer.
type RendererConfig struct {
	// CacheDir holds covers/, thumbnails/ and pdf/.
	CacheDir   string
	CoverWidth int
	Pool       *workers.Pool

	// SVG converts PDF pages. Nil disables PageSVG.
	SVG *transcoder.Transcoder
}

// Renderer produces cached covers, page thumbnails and PDF page SVGs.
//
// Generated files live under the cache directory:
//
//	covers/{id}.jpg
//	thumbnails/{id}/{page}_{width}.jpg
//	pdf/{id}/{page}.svg
//
// Concurrent requests for the same artifact share one generation.
type Renderer struct {
	cacheDir   string
	coverWidth atomic.Int64
	pool       *workers.Pool
	svg        *transcoder.Transcoder
}

// NewRenderer creates a Renderer and its cache directories.
func NewRenderer(cfg RendererConfig) *Renderer {
	pool := cfg.Pool
	if pool == nil {
		pool = workers.NewPool(workers.PoolConfig{Enabled: false})
	}
	r := &Renderer{cacheDir: cfg.CacheDir, pool: pool, svg: cfg.SVG}
	r.SetCoverWidth(cfg.CoverWidth)

	for _, dir := range []string{r.coversDir(), r.thumbnailsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logging.Warn("Renderer: failed to create cache dir %s: %v", dir, err)
		}
	}
	return r
}

// SetCoverWidth changes the width of covers generated from now on.
// Existing covers are not regenerated.
func (r *Renderer) SetCoverWidth(width int) {
	if width <= 0 {
		width = DefaultCoverWidth
	}
	r.coverWidth.Store(int64(width))
}

// CoverWidth returns the configured cover width.
func (r *Renderer) CoverWidth() int {
	return int(r.coverWidth.Load())
}

// CacheDir returns the root of the render cache.
func (r *Renderer) CacheDir() string { return r.cacheDir }

func (r *Renderer) coversDir() string     { return filepath.Join(r.cacheDir, "covers") }
func (r *Renderer) thumbnailsDir() string { return filepath.Join(r.cacheDir, "thumbnails") }

// CoverPath returns where the cover of a book is cached.
func (r *Renderer) CoverPath(bookID string) string {
	return filepath.Join(r.coversDir(), bookID+".jpg")
}

// ThumbnailPath returns where a page thumbnail is cached.
func (r *Renderer) ThumbnailPath(bookID string, page, width int) string {
	return filepath.Join(r.thumbnailsDir(), bookID, fmt.Sprintf("%d_%d.jpg", page, width))
}

// GenerateCover returns the cached cover of book, generating it from the
// first page (image books) or a raster of page one (PDF books).
func (r *Renderer) GenerateCover(ctx context.Context, book *library.Book) (string, error) {
	out := r.CoverPath(book.ID)
	if fileExists(out) {
		metrics.RenderCacheHits.WithLabelValues("cover").Inc()
		return out, nil
	}
	metrics.RenderCacheMisses.WithLabelValues("cover").Inc()

	width := r.CoverWidth()
	return workers.Do(ctx, r.pool, "cover:"+book.ID, func(ctx context.Context) (string, error) {
		return r.generate("cover", out, coverQuality, func() (image.Image, error) {
			switch book.Type {
			case library.PDFBook:
				return loadPageWithVips(book.Path, 0, width)
			case library.ImageBook:
				src := book.CoverPath
				if src == "" && len(book.Pages) > 0 {
					src = book.Pages[0]
				}
				if src == "" {
					return nil, fmt.Errorf("%w: book %s has no pages", library.ErrInvalidState, book.ID)
				}
				img, err := loadImage(src, width)
				if err != nil {
					return nil, err
				}
				return resizeToWidth(img, width), nil
			}
			return nil, fmt.Errorf("%w: unsupported book type %q", library.ErrInvalidState, book.Type)
		})
	})
}

// GenerateThumbnail returns a JPEG of page (1-based) scaled to width.
// Pages narrower than width are not enlarged. SVG pages that cannot be
// rasterized are replaced by a blank white page.
func (r *Renderer) GenerateThumbnail(ctx context.Context, book *library.Book, page, width int) (string, error) {
	if width <= 0 {
		return "", fmt.Errorf("%w: invalid width %d", library.ErrInvalidState, width)
	}
	if err := checkPage(book, page); err != nil {
		return "", err
	}

	out := r.ThumbnailPath(book.ID, page, width)
	if fileExists(out) {
		metrics.RenderCacheHits.WithLabelValues("thumbnail").Inc()
		return out, nil
	}
	metrics.RenderCacheMisses.WithLabelValues("thumbnail").Inc()

	key := fmt.Sprintf("thumbnail:%s:%d:%d", book.ID, page, width)
	return workers.Do(ctx, r.pool, key, func(ctx context.Context) (string, error) {
		return r.generate("thumbnail", out, thumbnailQuality, func() (image.Image, error) {
			if book.IsPDF() {
				return loadPageWithVips(book.Path, page-1, width)
			}

			src := book.Pages[page-1]
			img, err := loadImage(src, width)
			if err != nil {
				if mediatypes.Ext(src) == ".svg" {
					logging.Warn("Rasterizing %s failed, using placeholder: %v", src, err)
					return placeholder(width), nil
				}
				return nil, err
			}
			return resizeToWidth(img, width), nil
		})
	})
}

// PageSVG returns the SVG rendering of page (1-based) of a PDF book.
func (r *Renderer) PageSVG(ctx context.Context, book *library.Book, page int) (string, error) {
	if !book.IsPDF() {
		return "", fmt.Errorf("%w: only PDF books have SVG pages", library.ErrInvalidState)
	}
	if err := checkPage(book, page); err != nil {
		return "", err
	}
	if r.svg == nil {
		return "", fmt.Errorf("%w: PDF conversion not configured", library.ErrRenderFailure)
	}

	key := "svg:" + book.ID + ":" + strconv.Itoa(page)
	return workers.Do(ctx, r.pool, key, func(ctx context.Context) (string, error) {
		return r.svg.PageSVG(ctx, book.ID, book.Path, page)
	})
}

// generate renders an image and stores it as a JPEG at out.
func (r *Renderer) generate(kind, out string, quality int, render func() (image.Image, error)) (string, error) {
	// A concurrent generation may have finished while this one was queued.
	if fileExists(out) {
		return out, nil
	}

	start := time.Now()
	defer func() {
		metrics.RenderGenerationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	img, err := render()
	if err != nil {
		metrics.RenderGenerationsTotal.WithLabelValues(kind, "error").Inc()
		return "", wrapRender(err)
	}

	if err := writeJPEG(out, flattenOnWhite(img), quality); err != nil {
		metrics.RenderGenerationsTotal.WithLabelValues(kind, "error").Inc()
		return "", err
	}

	metrics.RenderGenerationsTotal.WithLabelValues(kind, "ok").Inc()
	logging.Debug("Rendered %s %s in %v", kind, out, time.Since(start))
	return out, nil
}

// ClearBookCache removes every cached artifact of a book. It reports
// whether all removals succeeded.
func (r *Renderer) ClearBookCache(bookID string) bool {
	if bookID == "" {
		return false
	}

	ok := true
	remove := func(path string) {
		if err := os.RemoveAll(path); err != nil {
			logging.Warn("Failed to remove cached %s: %v", path, err)
			ok = false
		}
	}

	remove(r.CoverPath(bookID))
	remove(filepath.Join(r.thumbnailsDir(), bookID))
	if r.svg != nil {
		if err := r.svg.ClearBook(bookID); err != nil {
			logging.Warn("Failed to remove cached SVG pages of %s: %v", bookID, err)
			ok = false
		}
	}
	return ok
}

// ClearAll empties the render cache and returns the number of bytes freed.
func (r *Renderer) ClearAll() (int64, error) {
	freed, err := transcoder.ClearDir(r.cacheDir)
	if err != nil {
		return freed, err
	}
	for _, dir := range []string{r.coversDir(), r.thumbnailsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logging.Warn("Renderer: failed to recreate %s: %v", dir, err)
		}
	}
	metrics.RenderCacheSizeBytes.Set(0)
	return freed, nil
}

// CacheSize returns the total size of the render cache in bytes.
func (r *Renderer) CacheSize() int64 {
	size, err := transcoder.DirSize(r.cacheDir)
	if err != nil {
		logging.Warn("Failed to size render cache: %v", err)
	}
	metrics.RenderCacheSizeBytes.Set(float64(size))
	return size
}

func checkPage(book *library.Book, page int) error {
	count := book.PageCount
	if !book.IsPDF() {
		count = len(book.Pages)
	}
	if page < 1 || page > count {
		return fmt.Errorf("%w: invalid page number %d, valid range 1-%d", library.ErrInvalidState, page, count)
	}
	return nil
}

// writeJPEG encodes img next to path and renames it into place.
func writeJPEG(path string, img image.Image, quality int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", library.ErrIOFailure, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %v", library.ErrIOFailure, err)
	}
	tmpName := tmp.Name()

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: quality}); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: encode jpeg: %v", library.ErrRenderFailure, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", library.ErrIOFailure, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", library.ErrIOFailure, err)
	}
	return nil
}

func wrapRender(err error) error {
	if isLibraryError(err) {
		return err
	}
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", library.ErrIOFailure, err)
	}
	return fmt.Errorf("%w: %v", library.ErrRenderFailure, err)
}

func isLibraryError(err error) bool {
	return errors.Is(err, library.ErrInvalidState) ||
		errors.Is(err, library.ErrIOFailure) ||
		errors.Is(err, library.ErrRenderFailure) ||
		errors.Is(err, library.ErrNotFound)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
