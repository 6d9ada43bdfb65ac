package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"book-library/internal/filesystem"
	"book-library/internal/identity"
	"book-library/internal/library"
	"book-library/internal/logging"
	"book-library/internal/media"
	"book-library/internal/mediatypes"
	"book-library/internal/metrics"
	"book-library/internal/settings"
)

// ScannerConfig configures a Scanner.
type ScannerConfig struct {
	// ImageExts are the page formats that make a folder an image book.
	ImageExts mediatypes.ExtSet
	// IgnoredExts are file types that do not disqualify an image book.
	IgnoredExts mediatypes.ExtSet
	// Thresholds decide the display strategy of image books.
	Thresholds media.Thresholds
	// AnalysisWorkers bounds concurrent page analysis (0 = auto).
	AnalysisWorkers int
	// Retry is applied to directory reads and stats.
	Retry filesystem.RetryConfig
}

// DefaultScannerConfig returns the built-in defaults. The analysis worker
// count defaults to 3, which is safe for network filesystems, and can be
// overridden with INDEX_WORKERS.
func DefaultScannerConfig() ScannerConfig {
	workers := 3
	if override := os.Getenv("INDEX_WORKERS"); override != "" {
		if n, err := strconv.Atoi(override); err == nil && n > 0 {
			workers = n
		}
	}

	return ScannerConfig{
		ImageExts:       mediatypes.NewExtSet(mediatypes.DefaultImageExtensions...),
		IgnoredExts:     mediatypes.NewExtSet(),
		Thresholds:      media.DefaultThresholds(),
		AnalysisWorkers: workers,
		Retry:           filesystem.DefaultRetryConfig(),
	}
}

// ScannerConfigFrom applies library settings over the defaults.
func ScannerConfigFrom(s settings.Settings) ScannerConfig {
	cfg := DefaultScannerConfig()
	cfg.ImageExts = s.ImageExtSet()
	cfg.IgnoredExts = s.IgnoredExtSet()
	cfg.Thresholds = media.Thresholds{
		MaxWidth:     s.ScanStrategyMaxWidth,
		MaxLength:    s.ScanStrategyMaxLength,
		MaxPixelArea: s.ScanStrategyMaxPixelArea,
	}
	return cfg
}

// Scanner turns a directory tree into a category tree. It touches only
// the filesystem.
type Scanner struct {
	config ScannerConfig
	pdf    media.PDFInspector
	dims   media.DimensionReader

	dirsScanned atomic.Int64
	dirsSkipped atomic.Int64
}

// NewScanner creates a Scanner. pdf may be nil, in which case PDF books
// are recorded without a page count.
func NewScanner(config ScannerConfig, pdf media.PDFInspector) *Scanner {
	if config.AnalysisWorkers <= 0 {
		config.AnalysisWorkers = DefaultScannerConfig().AnalysisWorkers
	}
	if config.ImageExts == nil {
		config.ImageExts = mediatypes.NewExtSet(mediatypes.DefaultImageExtensions...)
	}
	if config.IgnoredExts == nil {
		config.IgnoredExts = mediatypes.NewExtSet()
	}
	if config.Thresholds.MaxWidth <= 0 || config.Thresholds.MaxLength <= 0 || config.Thresholds.MaxPixelArea <= 0 {
		config.Thresholds = media.DefaultThresholds()
	}
	return &Scanner{config: config, pdf: pdf, dims: media.ReadDimensions}
}

// Stats returns the directories read and skipped by the last scan.
func (s *Scanner) Stats() (scanned, skipped int64) {
	return s.dirsScanned.Load(), s.dirsSkipped.Load()
}

type dirJob struct {
	path   string
	parent *library.Category
}

// Scan walks rootPath and returns its root category. The root always
// becomes a category. Unreadable subdirectories are skipped; an
// unreadable root fails with library.ErrIOFailure. Scan returns after
// every discovered book has been analysed.
func (s *Scanner) Scan(ctx context.Context, rootPath string) (*library.Category, error) {
	s.dirsScanned.Store(0)
	s.dirsSkipped.Store(0)

	resolved, err := identity.Resolve(rootPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", library.ErrIOFailure, err)
	}
	info, err := filesystem.StatWithRetry(resolved, s.config.Retry)
	if err != nil {
		return nil, fmt.Errorf("%w: library root %s: %v", library.ErrIOFailure, resolved, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: library root %s is not a directory", library.ErrIOFailure, resolved)
	}

	start := time.Now()
	now := start.UTC().Truncate(time.Second)

	var root *library.Category
	var books []*library.Book
	visited := make(map[string]struct{})

	stack := []dirJob{{path: resolved}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		job := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := visited[job.path]; ok {
			continue
		}
		visited[job.path] = struct{}{}

		isRoot := job.parent == nil
		listing, err := s.readDir(job.path)
		if err != nil {
			if isRoot {
				return nil, fmt.Errorf("%w: read library root: %v", library.ErrIOFailure, err)
			}
			logging.Warn("Skipping unreadable directory %s: %v", job.path, err)
			s.dirsSkipped.Add(1)
			metrics.ScannerDirectoriesSkipped.Inc()
			continue
		}
		s.dirsScanned.Add(1)

		current := job.parent
		if isRoot || len(listing.subdirs) > 0 || (len(listing.pdfs) > 0 && !listing.isImageBook) {
			cat := newCategory(job.path, now)
			if job.parent != nil {
				job.parent.SubCategories = append(job.parent.SubCategories, cat)
			} else {
				root = cat
			}
			current = cat
			metrics.ScannerEntitiesScanned.WithLabelValues("category").Inc()
		}

		for _, pdf := range listing.pdfs {
			b := s.newPDFBook(pdf, now)
			current.Books = append(current.Books, b)
			books = append(books, b)
			metrics.ScannerEntitiesScanned.WithLabelValues(string(library.PDFBook)).Inc()
		}

		if listing.isImageBook {
			owner := job.parent
			if isRoot {
				owner = current
			}
			b := newImageBook(job.path, listing.images, now)
			owner.Books = append(owner.Books, b)
			books = append(books, b)
			metrics.ScannerEntitiesScanned.WithLabelValues(string(library.ImageBook)).Inc()
		}

		// Reverse push keeps siblings in name order.
		for i := len(listing.subdirs) - 1; i >= 0; i-- {
			stack = append(stack, dirJob{path: listing.subdirs[i], parent: current})
		}
	}

	if err := s.analyze(ctx, books); err != nil {
		return nil, err
	}

	scanned, skipped := s.Stats()
	logging.Info("Scan of %s complete: %d directories (%d skipped), %d books in %v",
		resolved, scanned, skipped, len(books), time.Since(start))
	return root, nil
}

type dirListing struct {
	subdirs     []string
	pdfs        []string
	images      []string
	isImageBook bool
}

// readDir lists and classifies one directory. Paths are absolute and
// sorted by name.
func (s *Scanner) readDir(dir string) (dirListing, error) {
	entries, err := filesystem.ReadDirWithRetry(dir, s.config.Retry)
	if err != nil {
		return dirListing{}, err
	}

	var l dirListing
	effective := mediatypes.NewExtSet()
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)

		isDir, err := s.isDir(path, entry)
		if err != nil {
			logging.Debug("Skipping %s: %v", path, err)
			continue
		}
		if isDir {
			if target, err := filepath.EvalSymlinks(path); err == nil {
				path = target
			}
			l.subdirs = append(l.subdirs, path)
			continue
		}

		ext := mediatypes.Ext(name)
		if !s.config.IgnoredExts.Has(ext) {
			effective[ext] = struct{}{}
		}
		switch mediatypes.Classify(name, s.config.ImageExts) {
		case mediatypes.FileTypePDF:
			l.pdfs = append(l.pdfs, path)
		case mediatypes.FileTypeImage:
			l.images = append(l.images, path)
		}
	}

	sort.Strings(l.subdirs)
	l.isImageBook = len(l.subdirs) == 0 && len(l.images) > 0 && s.config.ImageExts.Contains(effective)
	return l, nil
}

// isDir follows symlinks so linked folders are scanned like real ones.
func (s *Scanner) isDir(path string, entry fs.DirEntry) (bool, error) {
	if entry.Type()&fs.ModeSymlink == 0 {
		return entry.IsDir(), nil
	}
	info, err := filesystem.StatWithRetry(path, s.config.Retry)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func newCategory(path string, now time.Time) *library.Category {
	return &library.Category{
		ID:            identity.ForPath(path),
		Name:          filepath.Base(path),
		Path:          path,
		SubCategories: []*library.Category{},
		Books:         []*library.Book{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func newImageBook(dir string, pages []string, now time.Time) *library.Book {
	return &library.Book{
		ID:        identity.ForPath(dir),
		Title:     filepath.Base(dir),
		Path:      dir,
		Type:      library.ImageBook,
		CoverPath: pages[0],
		PageCount: len(pages),
		Pages:     pages,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Scanner) newPDFBook(path string, now time.Time) *library.Book {
	name := filepath.Base(path)
	b := &library.Book{
		ID:        identity.ForPath(path),
		Title:     strings.TrimSuffix(name, filepath.Ext(name)),
		Path:      path,
		Type:      library.PDFBook,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if info, err := filesystem.StatWithRetry(path, s.config.Retry); err == nil {
		b.Inode, b.DeviceID = fileID(info)
	} else {
		logging.Debug("Cannot stat %s: %v", path, err)
	}
	return b
}

// analyze fills strategy, dimension type and, for PDFs, the page count
// of every book using a bounded set of workers.
func (s *Scanner) analyze(ctx context.Context, books []*library.Book) error {
	if len(books) == 0 {
		return nil
	}

	workers := s.config.AnalysisWorkers
	if workers > len(books) {
		workers = len(books)
	}

	jobs := make(chan *library.Book)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				s.analyzeBook(b)
			}
		}()
	}

	var err error
send:
	for _, b := range books {
		select {
		case jobs <- b:
		case <-ctx.Done():
			err = ctx.Err()
			break send
		}
	}
	close(jobs)
	wg.Wait()
	return err
}

func (s *Scanner) analyzeBook(b *library.Book) {
	var a media.Analysis
	if b.IsPDF() {
		a = s.analyzePDF(b)
	} else {
		a = media.AnalyzeImages(b.Pages, s.config.Thresholds, s.dims)
	}
	b.OptimizationStrategy = a.Strategy
	b.PageDimensionType = a.DimensionType()
}

func (s *Scanner) analyzePDF(b *library.Book) media.Analysis {
	if s.pdf == nil {
		return media.Analysis{Strategy: library.StrategyOriginal}
	}
	doc, err := s.pdf.OpenPDF(b.Path)
	if err != nil {
		logging.Warn("Cannot inspect PDF %s: %v", b.Path, err)
		return media.Analysis{Strategy: library.StrategyOriginal}
	}
	defer doc.Close()

	b.PageCount = doc.PageCount()
	return media.AnalyzePDF(doc)
}
