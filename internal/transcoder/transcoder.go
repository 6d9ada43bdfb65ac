package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"book-library/internal/library"
	"book-library/internal/logging"
	"book-library/internal/metrics"
)

// DefaultBinary is the poppler tool used to convert PDF pages to SVG.
const DefaultBinary = "pdftocairo"

// Transcoder converts PDF pages to cached SVG documents.
type Transcoder struct {
	cacheDir  string
	binary    string
	enabled   bool
	processes map[string]*exec.Cmd
	processMu sync.Mutex
}

// New creates a Transcoder that caches pages under cacheDir/{bookID}/.
// It is disabled when the converter binary cannot be found on PATH.
func New(cacheDir string) *Transcoder {
	return NewWithBinary(cacheDir, DefaultBinary)
}

// NewWithBinary is New with an explicit converter binary.
func NewWithBinary(cacheDir, binary string) *Transcoder {
	path, err := exec.LookPath(binary)
	if err != nil {
		logging.Warn("%s not found, PDF page rendering disabled: %v", binary, err)
	}
	return &Transcoder{
		cacheDir:  cacheDir,
		binary:    path,
		enabled:   err == nil,
		processes: make(map[string]*exec.Cmd),
	}
}

// IsEnabled returns whether PDF page conversion is available.
func (t *Transcoder) IsEnabled() bool {
	return t.enabled
}

// CacheDir returns the root of the SVG cache.
func (t *Transcoder) CacheDir() string {
	return t.cacheDir
}

// CachedPagePath returns where page (1-based) of a book is cached.
func (t *Transcoder) CachedPagePath(bookID string, page int) string {
	return filepath.Join(t.cacheDir, bookID, strconv.Itoa(page)+".svg")
}

// PageSVG returns the path of an SVG rendering of page (1-based) of the
// PDF, converting it on first use.
func (t *Transcoder) PageSVG(ctx context.Context, bookID, pdfPath string, page int) (string, error) {
	out := t.CachedPagePath(bookID, page)
	if _, err := os.Stat(out); err == nil {
		metrics.RenderCacheHits.WithLabelValues("svg").Inc()
		return out, nil
	}
	metrics.RenderCacheMisses.WithLabelValues("svg").Inc()

	if !t.enabled {
		return "", fmt.Errorf("%w: PDF conversion unavailable", library.ErrRenderFailure)
	}
	if page < 1 {
		return "", fmt.Errorf("%w: invalid page number %d", library.ErrInvalidState, page)
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("%w: create svg cache: %v", library.ErrIOFailure, err)
	}

	start := time.Now()
	err := t.convert(ctx, pdfPath, page, out)
	metrics.TranscoderJobDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TranscoderJobsTotal.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.TranscoderJobsTotal.WithLabelValues("ok").Inc()
	return out, nil
}

// convert writes to a temporary file and renames it so readers never see
// a partial SVG.
func (t *Transcoder) convert(ctx context.Context, pdfPath string, page int, out string) error {
	tmp := out + ".tmp"
	n := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, t.binary, "-svg", "-f", n, "-l", n, pdfPath, tmp)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	key := pdfPath + "#" + n
	t.processMu.Lock()
	t.processes[key] = cmd
	t.processMu.Unlock()
	defer func() {
		t.processMu.Lock()
		delete(t.processes, key)
		t.processMu.Unlock()
	}()

	if err := cmd.Run(); err != nil {
		os.Remove(tmp)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Error("%s stderr: %s", filepath.Base(t.binary), stderr.String())
		return fmt.Errorf("%w: convert page %d of %s: %v", library.ErrRenderFailure, page, pdfPath, err)
	}

	if err := os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: store svg: %v", library.ErrIOFailure, err)
	}
	return nil
}

// Cleanup stops all running conversions.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	for key, cmd := range t.processes {
		if cmd.Process != nil {
			logging.Info("Killing PDF conversion for: %s", key)
			if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				logging.Warn("failed to kill conversion for %s: %v", key, err)
			}
		}
	}
}

// ClearBook removes the cached pages of one book.
func (t *Transcoder) ClearBook(bookID string) error {
	if t.cacheDir == "" || bookID == "" {
		return nil
	}
	return os.RemoveAll(filepath.Join(t.cacheDir, bookID))
}

// ClearCache removes all cached pages and returns the number of bytes freed.
func (t *Transcoder) ClearCache() (int64, error) {
	return ClearDir(t.cacheDir)
}

// ClearDir empties dir, keeping dir itself, and returns the bytes freed.
// A missing directory frees nothing.
func ClearDir(dir string) (int64, error) {
	if dir == "" {
		return 0, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var freedBytes int64
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		size, err := DirSize(path)
		if err != nil {
			logging.Warn("failed to size %s: %v", path, err)
		}
		if err := os.RemoveAll(path); err != nil {
			logging.Warn("failed to remove %s: %v", path, err)
			continue
		}
		freedBytes += size
	}

	logging.Info("Cleared cache %s: freed %d bytes", dir, freedBytes)
	return freedBytes, nil
}

// DirSize returns the total size of the regular files under path. A
// missing path has size zero.
func DirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
