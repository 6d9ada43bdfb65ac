package handlers

import (
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"book-library/internal/library"
)

func TestListBooksPaginates(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/books?page=1&page_size=3&sort=asc", nil)
	require.Equal(t, http.StatusOK, w.Code)

	page := decode[Page[library.Book]](t, w)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 3, page.PageSize)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 3)

	w = env.do(t, http.MethodGet, "/api/books?page=2&page_size=3&sort=asc", nil)
	second := decode[Page[library.Book]](t, w)
	require.Len(t, second.Items, 1)

	seen := map[string]bool{}
	for _, b := range append(page.Items, second.Items...) {
		assert.False(t, seen[b.ID], "book %s listed twice", b.Title)
		seen[b.ID] = true
	}

	w = env.do(t, http.MethodGet, "/api/books?page=9", nil)
	assert.Empty(t, decode[Page[library.Book]](t, w).Items)
}

func TestListBooksRejectsBadPagination(t *testing.T) {
	env := newTestEnv(t)

	for _, q := range []string{"page=0", "page=x", "page_size=0", "page_size=101"} {
		w := env.do(t, http.MethodGet, "/api/books?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestSortByCreated(t *testing.T) {
	env := newTestEnv(t)
	books := env.cache.AllBooks()
	require.NotEmpty(t, books)

	sortByCreated(books, "asc")
	for i := 1; i < len(books); i++ {
		a, b := books[i-1], books[i]
		assert.True(t, a.CreatedAt.Before(b.CreatedAt) || (a.CreatedAt.Equal(b.CreatedAt) && a.ID < b.ID))
	}
}

func TestOptimizationNeeded(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/books/optimization-needed", nil)
	require.Equal(t, http.StatusOK, w.Code)

	page := decode[Page[library.Book]](t, w)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Big", page.Items[0].Title)
	assert.Equal(t, library.StrategySuggestCompression, page.Items[0].OptimizationStrategy)
}

func TestFavoriteToggle(t *testing.T) {
	env := newTestEnv(t)
	alpha := env.id("Alpha")

	w := env.do(t, http.MethodPost, "/api/books/"+alpha+"/favorite", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[FavoriteResponse](t, w)
	assert.True(t, resp.IsFavorite)
	assert.Equal(t, alpha, resp.BookID)

	w = env.do(t, http.MethodGet, "/api/books/favorite/list", nil)
	favorites := decode[Page[library.Book]](t, w)
	require.Len(t, favorites.Items, 1)
	assert.Equal(t, alpha, favorites.Items[0].ID)

	w = env.do(t, http.MethodDelete, "/api/books/"+alpha+"/favorite", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[FavoriteResponse](t, w).IsFavorite)

	w = env.do(t, http.MethodGet, "/api/books/favorite/list", nil)
	assert.Zero(t, decode[Page[library.Book]](t, w).Total)

	w = env.do(t, http.MethodPost, "/api/books/"+env.id("missing")+"/favorite", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetBook(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/books/"+env.id("Alpha"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	book := decode[library.Book](t, w)
	assert.Equal(t, "Alpha", book.Title)
	assert.Len(t, book.Pages, 2)

	w = env.do(t, http.MethodGet, "/api/books/"+env.id("nope"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetBookFallsBackToDatabaseBeforeCacheBuild(t *testing.T) {
	env := newTestEnv(t)
	env.cache.Clear()

	w := env.do(t, http.MethodGet, "/api/books/"+env.id("Alpha"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetPageOriginal(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/books/"+env.id("Alpha")+"/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	want, err := os.ReadFile(filepath.Join(env.root, "Alpha", "002.png"))
	require.NoError(t, err)
	assert.Equal(t, want, w.Body.Bytes())
}

func TestGetPageThumbnail(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/books/"+env.id("Alpha")+"/1?width=120", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))

	cfg, err := jpeg.DecodeConfig(w.Body)
	require.NoError(t, err)
	assert.LessOrEqual(t, cfg.Width, 120)
}

func TestGetPageCompressesLargePages(t *testing.T) {
	env := newTestEnv(t)
	big := env.id("Big")

	w := env.do(t, http.MethodGet, "/api/books/"+big+"/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	cfg, err := jpeg.DecodeConfig(w.Body)
	require.NoError(t, err)
	assert.Equal(t, env.settings.Get().CompressedWidth, cfg.Width)

	w = env.do(t, http.MethodGet, "/api/books/"+big+"/1?realsize=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
}

func TestGetPageErrors(t *testing.T) {
	env := newTestEnv(t)
	alpha := env.id("Alpha")
	pdf := env.id("Shelf", "doc.pdf")

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"page out of range", "/api/books/" + alpha + "/3", http.StatusBadRequest},
		{"page zero", "/api/books/" + alpha + "/0", http.StatusBadRequest},
		{"width too small", "/api/books/" + alpha + "/1?width=99", http.StatusBadRequest},
		{"width too large", "/api/books/" + alpha + "/1?width=2001", http.StatusBadRequest},
		{"bad realsize", "/api/books/" + alpha + "/1?realsize=maybe", http.StatusBadRequest},
		{"pdf book", "/api/books/" + pdf + "/1", http.StatusBadRequest},
		{"unknown book", "/api/books/" + env.id("x") + "/1", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestGetPageMissingFile(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.Remove(filepath.Join(env.root, "Alpha", "002.png")))

	w := env.do(t, http.MethodGet, "/api/books/"+env.id("Alpha")+"/2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Page image not found", errorMessage(t, w))
}

func TestGetPDF(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/books/pdf/"+env.id("Shelf", "doc.pdf"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "doc.pdf")
	assert.Equal(t, "%PDF-1.4\n%%EOF\n", w.Body.String())

	w = env.do(t, http.MethodGet, "/api/books/pdf/"+env.id("Alpha"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.NoError(t, os.Remove(filepath.Join(env.root, "Shelf", "doc.pdf")))
	w = env.do(t, http.MethodGet, "/api/books/pdf/"+env.id("Shelf", "doc.pdf"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetPDFRange(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/books/pdf/"+env.id("Shelf", "doc.pdf"), http.NoBody)
	req.Header.Set("Range", "bytes=0-3")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "%PDF", w.Body.String())
}

func TestGetPageSVGValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/books/svg/"+env.id("Alpha")+"/1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Only PDF books support SVG conversion", errorMessage(t, w))

	// Without an inspector the PDF has no known pages.
	w = env.do(t, http.MethodGet, "/api/books/svg/"+env.id("Shelf", "doc.pdf")+"/1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorMessage(t, w), "Valid range: 1-0")
}

func TestGetCover(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/books/covers/"+env.id("Alpha"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))

	cfg, err := jpeg.DecodeConfig(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Width)

	w = env.do(t, http.MethodGet, "/api/books/covers/"+env.id("gone"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
