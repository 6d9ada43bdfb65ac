package handlers

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/gorilla/mux"

	"book-library/internal/filesystem"
	"book-library/internal/library"
	"book-library/internal/logging"
	"book-library/internal/mediatypes"
)

const (
	minThumbnailWidth = 100
	maxThumbnailWidth = 2000
)

// FavoriteResponse is returned after a favorite toggle.
type FavoriteResponse struct {
	Message    string `json:"message"`
	BookID     string `json:"book_id"`
	IsFavorite bool   `json:"is_favorite"`
}

// ListBooks returns every book, paginated and sorted by creation time.
func (h *Handlers) ListBooks(w http.ResponseWriter, r *http.Request) {
	h.listBooks(w, r, nil)
}

// ListFavoriteBooks returns the books marked as favorite.
func (h *Handlers) ListFavoriteBooks(w http.ResponseWriter, r *http.Request) {
	h.listBooks(w, r, func(b *library.Book) bool { return b.IsFavorite })
}

// ListOptimizationNeeded returns books whose pages are too large to show
// unscaled.
func (h *Handlers) ListOptimizationNeeded(w http.ResponseWriter, r *http.Request) {
	h.listBooks(w, r, func(b *library.Book) bool { return b.OptimizationStrategy.NeedsCompression() })
}

func (h *Handlers) listBooks(w http.ResponseWriter, r *http.Request, keep func(*library.Book) bool) {
	page, size, err := pagination(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	all := h.cache.AllBooks()
	books := make([]*library.Book, 0, len(all))
	for _, b := range all {
		if keep == nil || keep(b) {
			books = append(books, b)
		}
	}
	sortByCreated(books, mediatypes.ParseSortOrder(r.URL.Query().Get("sort")))

	writeJSON(w, paginate(books, page, size))
}

// sortByCreated orders books by creation time, breaking ties by ID so
// pages are stable between requests.
func sortByCreated(books []*library.Book, order mediatypes.SortOrder) {
	sort.SliceStable(books, func(i, j int) bool {
		a, b := books[i], books[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if order == mediatypes.SortAsc {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// GetBook returns one book including its page list.
func (h *Handlers) GetBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.lookupBook(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeJSON(w, book)
}

// GetPDF serves the PDF file of a PDF book.
func (h *Handlers) GetPDF(w http.ResponseWriter, r *http.Request) {
	book, err := h.lookupBook(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, false)
		return
	}
	if !book.IsPDF() {
		writeJSONError(w, "This book is not a PDF book", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filepath.Base(book.Path)))
	h.serveFile(w, r, book.Path, "application/pdf", "private, max-age=3600")
}

// GetCover serves the cover of a book, generating it on first request.
func (h *Handlers) GetCover(w http.ResponseWriter, r *http.Request) {
	book, err := h.lookupBook(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, false)
		return
	}

	path, err := h.renderer.GenerateCover(r.Context(), book)
	if err != nil {
		logging.Warn("Cover for %s failed: %v", book.ID, err)
		writeError(w, err, false)
		return
	}
	h.serveFile(w, r, path, "image/jpeg", "public, max-age=86400")
}

// GetPageSVG serves one page of a PDF book as SVG.
func (h *Handlers) GetPageSVG(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	page, err := strconv.Atoi(vars["page"])
	if err != nil {
		writeJSONError(w, "Invalid page number", http.StatusBadRequest)
		return
	}

	book, err := h.lookupBook(r.Context(), vars["id"])
	if err != nil {
		writeError(w, err, false)
		return
	}
	if !book.IsPDF() {
		writeJSONError(w, "Only PDF books support SVG conversion", http.StatusBadRequest)
		return
	}
	if page < 1 || page > book.PageCount {
		writeJSONError(w, fmt.Sprintf("Invalid page number. Valid range: 1-%d", book.PageCount), http.StatusBadRequest)
		return
	}
	if _, err := filesystem.StatWithRetry(book.Path, h.retry); err != nil {
		writeJSONError(w, "PDF file not found", http.StatusNotFound)
		return
	}

	path, err := h.renderer.PageSVG(r.Context(), book, page)
	if err != nil {
		writeError(w, err, false)
		return
	}
	h.serveFile(w, r, path, "image/svg+xml", "public, max-age=86400")
}

// GetPage serves one page of an image book. With width it serves a
// cached JPEG of that width. Without it, pages of books flagged for
// compression are downscaled to the configured compressed width unless
// realsize is true.
func (h *Handlers) GetPage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	page, err := strconv.Atoi(vars["page"])
	if err != nil {
		writeJSONError(w, "Invalid page number", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	width := 0
	if v := q.Get("width"); v != "" {
		width, err = strconv.Atoi(v)
		if err != nil || width < minThumbnailWidth || width > maxThumbnailWidth {
			writeJSONError(w, fmt.Sprintf("width must be between %d and %d", minThumbnailWidth, maxThumbnailWidth), http.StatusBadRequest)
			return
		}
	}
	realSize := false
	if v := q.Get("realsize"); v != "" {
		if realSize, err = strconv.ParseBool(v); err != nil {
			writeJSONError(w, "realsize must be true or false", http.StatusBadRequest)
			return
		}
	}

	book, err := h.lookupBook(r.Context(), vars["id"])
	if err != nil {
		writeError(w, err, false)
		return
	}

	if width > 0 {
		h.serveThumbnail(w, r, book, page, width)
		return
	}

	if book.IsPDF() {
		writeJSONError(w, "PDF books should request SVG format! Please use /api/books/svg/{book_id}/{page}", http.StatusBadRequest)
		return
	}
	if page < 1 || page > len(book.Pages) {
		writeJSONError(w, fmt.Sprintf("Invalid page number. Valid range: 1-%d", len(book.Pages)), http.StatusBadRequest)
		return
	}

	src := book.Pages[page-1]
	if _, err := filesystem.StatWithRetry(src, h.retry); err != nil {
		writeJSONError(w, "Page image not found", http.StatusNotFound)
		return
	}

	if !realSize && book.OptimizationStrategy.NeedsCompression() {
		h.serveThumbnail(w, r, book, page, h.settings.Get().CompressedWidth)
		return
	}
	h.serveFile(w, r, src, mediatypes.GetMimeType(mediatypes.Ext(src)), "public, max-age=86400")
}

func (h *Handlers) serveThumbnail(w http.ResponseWriter, r *http.Request, book *library.Book, page, width int) {
	path, err := h.renderer.GenerateThumbnail(r.Context(), book, page, width)
	if err != nil {
		writeError(w, err, true)
		return
	}
	h.serveFile(w, r, path, "image/jpeg", "public, max-age=86400")
}

// AddFavorite marks a book as favorite.
func (h *Handlers) AddFavorite(w http.ResponseWriter, r *http.Request) {
	h.setFavorite(w, r, true)
}

// RemoveFavorite clears the favorite mark of a book.
func (h *Handlers) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	h.setFavorite(w, r, false)
}

func (h *Handlers) setFavorite(w http.ResponseWriter, r *http.Request, favorite bool) {
	id := mux.Vars(r)["id"]
	if err := h.db.SetFavorite(r.Context(), id, favorite); err != nil {
		writeError(w, err, false)
		return
	}
	if err := h.cache.Rebuild(r.Context()); err != nil {
		logging.Error("Tree cache rebuild after favorite change failed: %v", err)
	}

	msg := "Book added to favorite successfully"
	if !favorite {
		msg = "Book removed from favorite successfully"
	}
	writeJSON(w, FavoriteResponse{Message: msg, BookID: id, IsFavorite: favorite})
}

// serveFile streams a file with Range support. A missing file is 404.
func (h *Handlers) serveFile(w http.ResponseWriter, r *http.Request, path, contentType, cacheControl string) {
	f, err := filesystem.OpenWithRetry(path, h.retry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeJSONError(w, "File not found", http.StatusNotFound)
			return
		}
		writeError(w, fmt.Errorf("%w: %v", library.ErrIOFailure, err), true)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeJSONError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", cacheControl)
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}
