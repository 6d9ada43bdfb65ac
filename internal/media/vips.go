package media

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"

	"book-library/internal/library"
	"book-library/internal/logging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// vipsLogConfig maps the application log level onto libvips' own level
// and routes its messages through the logging package.
func vipsLogConfig(level logging.LogLevel) (vips.LoggingHandlerFunction, vips.LogLevel) {
	forward := func(domain string, lvl vips.LogLevel, msg string) {
		switch lvl {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}

	switch level {
	case logging.LevelDebug:
		return forward, vips.LogLevelInfo
	case logging.LevelWarn, logging.LevelError:
		return forward, vips.LogLevelError
	default:
		return forward, vips.LogLevelWarning
	}
}

// InitVips initializes the libvips library
// This should be called once at startup
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Must be configured before Startup.
	vips.LoggingSettings(vipsLogConfig(logging.GetLevel()))

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// LoadImageWithVips decodes path with decode-time shrinking to at most
// targetWidth pixels wide and returns it as an image.Image.
func LoadImageWithVips(path string, targetWidth int) (image.Image, error) {
	return loadPageWithVips(path, 0, targetWidth)
}

// loadPageWithVips rasterizes one page (PDF page or image frame).
func loadPageWithVips(path string, page, targetWidth int) (image.Image, error) {
	if !IsVipsAvailable() {
		return nil, fmt.Errorf("libvips not available")
	}

	params := vips.NewImportParams()
	params.Page.Set(page)
	ref, err := vips.LoadImageFromFile(path, params)
	if err != nil {
		return nil, fmt.Errorf("vips failed to load %s: %w", filepath.Base(path), err)
	}
	defer ref.Close()

	if ref.HasAlpha() {
		if err := ref.Flatten(&vips.Color{R: 255, G: 255, B: 255}); err != nil {
			return nil, fmt.Errorf("vips flatten failed: %w", err)
		}
	}

	if targetWidth > 0 && ref.Width() > targetWidth {
		targetHeight := ref.Height() * targetWidth / ref.Width()
		if err := ref.Thumbnail(targetWidth, targetHeight, vips.InterestingNone); err != nil {
			return nil, fmt.Errorf("vips resize failed: %w", err)
		}
	}

	imgBytes, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        95,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode vips output: %w", err)
	}
	return img, nil
}

func vipsDimensions(path string) (int, int, error) {
	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return 0, 0, err
	}
	defer ref.Close()
	return ref.Width(), ref.Height(), nil
}

// PDFDocument is an opened PDF whose pages can be measured.
type PDFDocument interface {
	PageSizer
	Close() error
}

// PDFInspector opens PDFs for page counting and measurement.
type PDFInspector interface {
	OpenPDF(path string) (PDFDocument, error)
}

// VipsPDF inspects PDFs through libvips' poppler loader. At the default
// 72 DPI one pixel equals one PDF point.
type VipsPDF struct{}

// OpenPDF reads the page count from the first page's metadata.
func (VipsPDF) OpenPDF(path string) (PDFDocument, error) {
	if !IsVipsAvailable() {
		return nil, fmt.Errorf("%w: libvips not available", library.ErrIOFailure)
	}

	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf %s: %v", library.ErrIOFailure, path, err)
	}
	doc := &vipsPDFDocument{
		path:  path,
		pages: ref.Pages(),
		first: [2]int{ref.Width(), ref.Height()},
	}
	ref.Close()
	return doc, nil
}

type vipsPDFDocument struct {
	path  string
	pages int
	first [2]int
}

func (d *vipsPDFDocument) PageCount() int { return d.pages }

func (d *vipsPDFDocument) PageSize(index int) (int, int, error) {
	if index < 0 || index >= d.pages {
		return 0, 0, fmt.Errorf("page %d out of range", index)
	}
	if index == 0 {
		return d.first[0], d.first[1], nil
	}

	params := vips.NewImportParams()
	params.Page.Set(index)
	ref, err := vips.LoadImageFromFile(d.path, params)
	if err != nil {
		return 0, 0, err
	}
	defer ref.Close()
	return ref.Width(), ref.Height(), nil
}

func (d *vipsPDFDocument) Close() error { return nil }
