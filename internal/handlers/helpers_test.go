package handlers

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"book-library/internal/database"
	"book-library/internal/identity"
	"book-library/internal/indexer"
	"book-library/internal/media"
	"book-library/internal/settings"
	"book-library/internal/treecache"
)

// testEnv is a complete server over a small library:
//
//	library/
//	  Alpha/001.png 002.png        image book at the root
//	  Big/001.png                  image book with a 6000px wide page
//	  Shelf/doc.pdf                PDF book
//	  Shelf/Beta/001.png           image book below Shelf
type testEnv struct {
	h        *Handlers
	router   *mux.Router
	db       *database.Database
	cache    *treecache.Cache
	idx      *indexer.Indexer
	settings *settings.Store
	renderer *media.Renderer
	root     string
	dataDir  string
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 90, G: 120, B: 200, A: 255})
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func buildLibrary(t *testing.T, root string) {
	t.Helper()
	writePNG(t, filepath.Join(root, "Alpha", "001.png"), 40, 60)
	writePNG(t, filepath.Join(root, "Alpha", "002.png"), 40, 60)
	writePNG(t, filepath.Join(root, "Big", "001.png"), 6000, 4)
	writePNG(t, filepath.Join(root, "Shelf", "Beta", "001.png"), 30, 30)
	require.NoError(t, os.WriteFile(filepath.Join(root, "Shelf", "doc.pdf"), []byte("%PDF-1.4\n%%EOF\n"), 0o644))
}

// newUnsyncedEnv wires every component but does not scan.
func newUnsyncedEnv(t *testing.T) *testEnv {
	t.Helper()

	tmp, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	root := filepath.Join(tmp, "library")
	buildLibrary(t, root)

	db, err := database.New(context.Background(), filepath.Join(tmp, "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := settings.Open(filepath.Join(tmp, "settings.yaml"), root)
	require.NoError(t, err)

	renderer := media.NewRenderer(media.RendererConfig{CacheDir: filepath.Join(tmp, "cache"), CoverWidth: 20})
	cache := treecache.New(db)
	idx := indexer.New(db, cache, nil, nil, renderer, indexer.Config{
		RootPath: root,
		DataDir:  tmp,
		Scanner:  indexer.ScannerConfigFrom(store.Get()),
	})

	h := New(db, cache, idx, renderer, store)
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	return &testEnv{
		h:        h,
		router:   router,
		db:       db,
		cache:    cache,
		idx:      idx,
		settings: store,
		renderer: renderer,
		root:     root,
		dataDir:  tmp,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newUnsyncedEnv(t)
	_, err := env.idx.Sync(context.Background())
	require.NoError(t, err)
	return env
}

func (e *testEnv) id(rel ...string) string {
	return identity.ForPath(filepath.Join(append([]string{e.root}, rel...)...))
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]interface{}](t, w)["error"].(string)
}
