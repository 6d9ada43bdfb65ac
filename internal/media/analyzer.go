package media

import (
	"fmt"
	"time"

	"book-library/internal/library"
	"book-library/internal/logging"
	"book-library/internal/metrics"
)

// Thresholds bound the page size above which a book is served downscaled.
type Thresholds struct {
	MaxWidth     int
	MaxLength    int
	MaxPixelArea int
}

// DefaultThresholds returns 2500×2500 and five megapixels.
func DefaultThresholds() Thresholds {
	return Thresholds{MaxWidth: 2500, MaxLength: 2500, MaxPixelArea: 5_000_000}
}

// Analysis is the outcome of sampling a book's pages.
type Analysis struct {
	Strategy  library.Strategy
	AvgWidth  int
	AvgHeight int
}

// DimensionType renders the average size as "{width}x{height}".
func (a Analysis) DimensionType() string {
	return fmt.Sprintf("%dx%d", a.AvgWidth, a.AvgHeight)
}

// SampleIndices returns the sorted distinct indices of the first, middle
// and last of n pages.
func SampleIndices(n int) []int {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []int{0}
	case n == 2:
		return []int{0, 1}
	}
	return []int{0, n / 2, n - 1}
}

// DecideStrategy classifies an average page size.
func DecideStrategy(width, height int, t Thresholds) library.Strategy {
	switch {
	case width >= t.MaxWidth && height >= t.MaxLength,
		width >= 2*t.MaxWidth,
		height >= 2*t.MaxLength,
		int64(width)*int64(height) >= int64(t.MaxPixelArea):
		return library.StrategySuggestCompression
	default:
		return library.StrategyOriginal
	}
}

// DimensionReader returns the pixel size of an image file.
type DimensionReader func(path string) (width, height int, err error)

// AnalyzeImages samples up to three pages of an image book and decides its
// strategy from their integer-average size. Pages that cannot be read are
// skipped; if none can be read the result is StrategyOriginal with zero
// averages.
func AnalyzeImages(pages []string, t Thresholds, read DimensionReader) Analysis {
	start := time.Now()
	defer func() {
		metrics.ScannerAnalysisDuration.WithLabelValues(string(library.ImageBook)).Observe(time.Since(start).Seconds())
	}()

	if read == nil {
		read = ReadDimensions
	}

	var totalW, totalH, valid int
	for _, i := range SampleIndices(len(pages)) {
		w, h, err := read(pages[i])
		if err != nil {
			logging.Debug("Skipping sample %s: %v", pages[i], err)
			continue
		}
		totalW += w
		totalH += h
		valid++
	}

	if valid == 0 {
		return Analysis{Strategy: library.StrategyOriginal}
	}

	avgW, avgH := totalW/valid, totalH/valid
	return Analysis{
		Strategy:  DecideStrategy(avgW, avgH, t),
		AvgWidth:  avgW,
		AvgHeight: avgH,
	}
}

// PageSizer exposes page geometry of an opened document, in points.
type PageSizer interface {
	PageCount() int
	PageSize(index int) (width, height int, err error)
}

// AnalyzePDF samples page sizes like AnalyzeImages. PDFs are vector
// content, so the strategy is always StrategyOriginal.
func AnalyzePDF(doc PageSizer) Analysis {
	start := time.Now()
	defer func() {
		metrics.ScannerAnalysisDuration.WithLabelValues(string(library.PDFBook)).Observe(time.Since(start).Seconds())
	}()

	var totalW, totalH, valid int
	for _, i := range SampleIndices(doc.PageCount()) {
		w, h, err := doc.PageSize(i)
		if err != nil {
			continue
		}
		totalW += w
		totalH += h
		valid++
	}

	if valid == 0 {
		return Analysis{Strategy: library.StrategyOriginal}
	}
	return Analysis{
		Strategy:  library.StrategyOriginal,
		AvgWidth:  totalW / valid,
		AvgHeight: totalH / valid,
	}
}
