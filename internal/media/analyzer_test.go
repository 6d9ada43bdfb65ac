package media

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"book-library/internal/library"
)

func TestSampleIndices(t *testing.T) {
	tests := []struct {
		n    int
		want []int
	}{
		{0, nil},
		{1, []int{0}},
		{2, []int{0, 1}},
		{3, []int{0, 1, 2}},
		{10, []int{0, 5, 9}},
		{101, []int{0, 50, 100}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SampleIndices(tt.n), "n=%d", tt.n)
	}
}

func TestDecideStrategy(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name string
		w, h int
		want library.Strategy
	}{
		{"both over", 3000, 3000, library.StrategySuggestCompression},
		{"both at limit", 2500, 2500, library.StrategySuggestCompression},
		{"double width", 5000, 100, library.StrategySuggestCompression},
		{"double length", 100, 5000, library.StrategySuggestCompression},
		{"area", 2000, 2500, library.StrategySuggestCompression},
		{"typical scan", 1200, 1800, library.StrategyOriginal},
		{"wide only", 2600, 1000, library.StrategyOriginal},
		{"thin strip below double width", 3000, 4, library.StrategyOriginal},
		{"thin strip at double width", 6000, 4, library.StrategySuggestCompression},
		{"zero", 0, 0, library.StrategyOriginal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecideStrategy(tt.w, tt.h, th))
		})
	}
}

func TestAnalyzeImagesAveragesSamples(t *testing.T) {
	pages := []string{"p0", "p1", "p2", "p3", "p4"}
	sizes := map[string][2]int{
		"p0": {1000, 1500},
		"p2": {1001, 1501},
		"p4": {1003, 1502},
	}
	var read []string
	reader := func(path string) (int, int, error) {
		read = append(read, path)
		s, ok := sizes[path]
		if !ok {
			return 0, 0, errors.New("unexpected page")
		}
		return s[0], s[1], nil
	}

	a := AnalyzeImages(pages, DefaultThresholds(), reader)
	assert.Equal(t, []string{"p0", "p2", "p4"}, read)
	assert.Equal(t, library.StrategyOriginal, a.Strategy)
	assert.Equal(t, 1001, a.AvgWidth)
	assert.Equal(t, 1501, a.AvgHeight)
	assert.Equal(t, "1001x1501", a.DimensionType())
}

func TestAnalyzeImagesSkipsUnreadable(t *testing.T) {
	reader := func(path string) (int, int, error) {
		if path == "bad" {
			return 0, 0, errors.New("corrupt")
		}
		return 3000, 3000, nil
	}

	a := AnalyzeImages([]string{"good", "bad", "good2"}, DefaultThresholds(), reader)
	assert.Equal(t, library.StrategySuggestCompression, a.Strategy)
	assert.Equal(t, 3000, a.AvgWidth)

	none := AnalyzeImages([]string{"bad"}, DefaultThresholds(), reader)
	assert.Equal(t, Analysis{Strategy: library.StrategyOriginal}, none)
	assert.Equal(t, "0x0", none.DimensionType())
}

func TestAnalyzeImagesFromFiles(t *testing.T) {
	dir := t.TempDir()
	var pages []string
	for _, name := range []string{"01.png", "02.png", "03.png"} {
		p := filepath.Join(dir, name)
		createTestImage(t, p, 40, 60, "png")
		pages = append(pages, p)
	}

	a := AnalyzeImages(pages, DefaultThresholds(), nil)
	assert.Equal(t, "40x60", a.DimensionType())
	assert.Equal(t, library.StrategyOriginal, a.Strategy)
}

type fakeDoc struct {
	sizes [][2]int
	fail  map[int]bool
}

func (d fakeDoc) PageCount() int { return len(d.sizes) }

func (d fakeDoc) PageSize(i int) (int, int, error) {
	if d.fail[i] {
		return 0, 0, errors.New("bad page")
	}
	return d.sizes[i][0], d.sizes[i][1], nil
}

func TestAnalyzePDFAlwaysOriginal(t *testing.T) {
	doc := fakeDoc{sizes: [][2]int{{6000, 6000}, {6000, 6000}, {6000, 6000}}}
	a := AnalyzePDF(doc)
	require.Equal(t, library.StrategyOriginal, a.Strategy)
	assert.Equal(t, "6000x6000", a.DimensionType())

	doc = fakeDoc{sizes: [][2]int{{595, 842}, {612, 792}}, fail: map[int]bool{1: true}}
	assert.Equal(t, "595x842", AnalyzePDF(doc).DimensionType())

	assert.Equal(t, Analysis{Strategy: library.StrategyOriginal}, AnalyzePDF(fakeDoc{}))
}
