package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"book-library/internal/library"
)

// ListCategories returns the category tree. Book page lists are left out
// to keep the payload small.
func (h *Handlers) ListCategories(w http.ResponseWriter, _ *http.Request) {
	roots := h.cache.Roots()
	out := make([]*library.Category, 0, len(roots))
	seen := make(map[string]bool)
	for _, root := range roots {
		out = append(out, categoryView(root, seen))
	}
	writeJSON(w, out)
}

// GetCategory returns one category and its subtree.
func (h *Handlers) GetCategory(w http.ResponseWriter, r *http.Request) {
	cat, ok := h.cache.CategoryByID(mux.Vars(r)["id"])
	if !ok {
		writeJSONError(w, "Category not found", http.StatusNotFound)
		return
	}
	writeJSON(w, categoryView(cat, make(map[string]bool)))
}

// GetCategoryBooks returns the books of a category and all of its
// descendants, each once.
func (h *Handlers) GetCategoryBooks(w http.ResponseWriter, r *http.Request) {
	books, ok := h.cache.CategoryBooks(mux.Vars(r)["id"])
	if !ok {
		writeJSONError(w, "Category not found", http.StatusNotFound)
		return
	}
	writeJSON(w, bookViews(books))
}

// GetCategoryChildren returns the direct sub-categories of a category.
func (h *Handlers) GetCategoryChildren(w http.ResponseWriter, r *http.Request) {
	children, ok := h.cache.ChildrenOf(mux.Vars(r)["id"])
	if !ok {
		writeJSONError(w, "Category not found", http.StatusNotFound)
		return
	}
	seen := make(map[string]bool)
	out := make([]*library.Category, 0, len(children))
	for _, c := range children {
		out = append(out, categoryView(c, seen))
	}
	writeJSON(w, out)
}

// categoryView copies a cached category for output. The cache is shared
// between requests, so nothing in it may be modified. A category reached
// twice is listed without its subtree the second time.
func categoryView(cat *library.Category, seen map[string]bool) *library.Category {
	out := *cat
	out.Books = bookViews(cat.Books)
	out.SubCategories = []*library.Category{}

	if seen[cat.ID] {
		return &out
	}
	seen[cat.ID] = true
	for _, sub := range cat.SubCategories {
		out.SubCategories = append(out.SubCategories, categoryView(sub, seen))
	}
	return &out
}

func bookViews(books []*library.Book) []*library.Book {
	out := make([]*library.Book, 0, len(books))
	for _, b := range books {
		v := *b
		v.Pages = nil
		out = append(out, &v)
	}
	return out
}
