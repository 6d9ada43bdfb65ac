package indexer

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"book-library/internal/library"
	"book-library/internal/media"
)

// writePNG writes a solid PNG of the given size, creating parent
// directories.
func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// writeFile writes arbitrary bytes, creating parent directories.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// resolvedTempDir returns a temp dir with symlinks resolved so paths
// match what the scanner records.
func resolvedTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	return dir
}

// fakePDF reports a fixed page count and size for every document.
type fakePDF struct {
	pages  int
	width  int
	height int
	fail   bool
}

func (f fakePDF) OpenPDF(string) (media.PDFDocument, error) {
	if f.fail {
		return nil, os.ErrInvalid
	}
	return fakeDoc(f), nil
}

type fakeDoc fakePDF

func (d fakeDoc) PageCount() int { return d.pages }

func (d fakeDoc) PageSize(int) (int, int, error) { return d.width, d.height, nil }

func (d fakeDoc) Close() error { return nil }

// memStore is an in-memory Store with per-operation error injection.
type memStore struct {
	mu        sync.Mutex
	cats      map[string]*library.Category
	books     map[string]*library.Book
	rels      map[[2]string]library.Relation
	failOn    map[string]error // "op:id"
	lastScan  time.Time
	addCalls  int
	bookWrite int
}

func newMemStore() *memStore {
	return &memStore{
		cats:   make(map[string]*library.Category),
		books:  make(map[string]*library.Book),
		rels:   make(map[[2]string]library.Relation),
		failOn: make(map[string]error),
	}
}

func (m *memStore) fail(op, id string) error {
	return m.failOn[op+":"+id]
}

func (m *memStore) GetCategory(_ context.Context, id string) (*library.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cats[id]
	if !ok {
		return nil, library.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) AddCategory(_ context.Context, c *library.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("add_category", c.ID); err != nil {
		return err
	}
	if _, ok := m.cats[c.ID]; ok {
		return library.ErrDuplicateID
	}
	cp := *c
	cp.SubCategories, cp.Books = nil, nil
	m.cats[c.ID] = &cp
	return nil
}

func (m *memStore) UpdateCategory(_ context.Context, c *library.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.cats[c.ID]
	if !ok {
		return library.ErrNotFound
	}
	old.Name, old.Path = c.Name, c.Path
	return nil
}

func (m *memStore) DeleteCategory(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("delete_category", id); err != nil {
		return err
	}
	delete(m.cats, id)
	for k := range m.rels {
		if k[0] == id || k[1] == id {
			delete(m.rels, k)
		}
	}
	return nil
}

func (m *memStore) AddBook(_ context.Context, b *library.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls++
	if err := m.fail("add_book", b.ID); err != nil {
		return err
	}
	if _, ok := m.books[b.ID]; ok {
		return library.ErrDuplicateID
	}
	cp := *b
	m.books[b.ID] = &cp
	return nil
}

func (m *memStore) UpdateBook(_ context.Context, b *library.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[b.ID]; !ok {
		return library.ErrNotFound
	}
	m.bookWrite++
	cp := *b
	m.books[b.ID] = &cp
	return nil
}

func (m *memStore) DeleteBook(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("delete_book", id); err != nil {
		return err
	}
	if _, ok := m.books[id]; !ok {
		return library.ErrNotFound
	}
	delete(m.books, id)
	for k, r := range m.rels {
		if k[1] == id && r.Type == library.CategoryBook {
			delete(m.rels, k)
		}
	}
	return nil
}

func (m *memStore) AddRelation(_ context.Context, r library.Relation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("add_relation", r.ChildID); err != nil {
		return err
	}
	k := [2]string{r.ParentID, r.ChildID}
	if _, ok := m.rels[k]; !ok {
		m.rels[k] = r
	}
	return nil
}

func (m *memStore) GetAllCategories(context.Context) ([]*library.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("get_all_categories", ""); err != nil {
		return nil, err
	}
	out := make([]*library.Category, 0, len(m.cats))
	for _, c := range m.cats {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) GetAllBooks(context.Context) ([]*library.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*library.Book, 0, len(m.books))
	for _, b := range m.books {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) GetAllRelations(context.Context) ([]library.Relation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]library.Relation, 0, len(m.rels))
	for _, r := range m.rels {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) Counts(context.Context) (library.ScanCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return library.ScanCounts{Categories: len(m.cats), Books: len(m.books)}, nil
}

func (m *memStore) SetLastScan(_ context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastScan = t
	return nil
}

// recordingRenderer counts cover generations and cache clears.
type recordingRenderer struct {
	mu      sync.Mutex
	covers  []string
	cleared []string
	err     error
}

func (r *recordingRenderer) GenerateCover(_ context.Context, b *library.Book) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.covers = append(r.covers, b.ID)
	return "/covers/" + b.ID + ".jpg", r.err
}

func (r *recordingRenderer) ClearBookCache(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = append(r.cleared, id)
	return true
}

// countingCache counts rebuilds.
type countingCache struct {
	rebuilds atomic.Int32
	err      error
}

func (c *countingCache) Rebuild(context.Context) error {
	c.rebuilds.Add(1)
	return c.err
}

// collectEvents returns an Emitter appending to the returned slice.
func collectEvents() (*[]library.Event, Emitter) {
	var mu sync.Mutex
	events := &[]library.Event{}
	return events, func(ev library.Event) {
		mu.Lock()
		defer mu.Unlock()
		*events = append(*events, ev)
	}
}
