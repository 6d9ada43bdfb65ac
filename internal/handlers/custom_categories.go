package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"book-library/internal/library"
	"book-library/internal/settings"
)

var requestValidator = settings.NewValidator()

// CustomCategoryRequest is the body of create requests.
type CustomCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// CustomCategoryPatch is the body of update requests. Omitted fields keep
// their stored value; the merged result is validated as a
// CustomCategoryRequest.
type CustomCategoryPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	if err := requestValidator.Validate(v); err != nil {
		writeError(w, err, false)
		return false
	}
	return true
}

// ListCustomCategories returns the custom categories, paginated.
func (h *Handlers) ListCustomCategories(w http.ResponseWriter, r *http.Request) {
	page, size, err := pagination(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	cats, err := h.db.ListCustomCategories(r.Context())
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeJSON(w, paginate(cats, page, size))
}

func (h *Handlers) GetCustomCategory(w http.ResponseWriter, r *http.Request) {
	cat, err := h.db.GetCustomCategory(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeJSON(w, cat)
}

func (h *Handlers) CreateCustomCategory(w http.ResponseWriter, r *http.Request) {
	var req CustomCategoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cat, err := h.db.CreateCustomCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeJSONCode(w, http.StatusCreated, cat)
}

func (h *Handlers) UpdateCustomCategory(w http.ResponseWriter, r *http.Request) {
	var patch CustomCategoryPatch
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	id := mux.Vars(r)["id"]
	existing, err := h.db.GetCustomCategory(r.Context(), id)
	if err != nil {
		writeError(w, err, false)
		return
	}
	name, desc := existing.Name, existing.Description
	if patch.Name != nil {
		name = *patch.Name
	}
	if patch.Description != nil {
		desc = *patch.Description
	}
	if err := requestValidator.Validate(&CustomCategoryRequest{Name: name, Description: desc}); err != nil {
		writeError(w, err, false)
		return
	}

	cat, err := h.db.UpdateCustomCategory(r.Context(), id, name, desc)
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeJSON(w, cat)
}

func (h *Handlers) DeleteCustomCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DeleteCustomCategory(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err, false)
		return
	}
	writeJSON(w, map[string]string{"message": "Custom category deleted successfully"})
}

// GetCustomCategoryBooks returns the members of a custom category,
// paginated.
func (h *Handlers) GetCustomCategoryBooks(w http.ResponseWriter, r *http.Request) {
	page, size, err := pagination(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := mux.Vars(r)["id"]
	if _, err := h.db.GetCustomCategory(r.Context(), id); err != nil {
		writeError(w, err, false)
		return
	}
	books, err := h.db.GetCustomCategoryBooks(r.Context(), id)
	if err != nil {
		writeError(w, err, false)
		return
	}
	if books == nil {
		books = []*library.Book{}
	}
	writeJSON(w, paginate(bookViews(books), page, size))
}

// AddBookToCustomCategory adds a book to a custom category. Adding a
// member twice is a conflict.
func (h *Handlers) AddBookToCustomCategory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.db.AddBookToCustomCategory(r.Context(), vars["id"], vars["book_id"]); err != nil {
		writeError(w, err, false)
		return
	}
	writeJSON(w, map[string]string{"message": "Book added to custom category successfully"})
}

func (h *Handlers) RemoveBookFromCustomCategory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.db.RemoveBookFromCustomCategory(r.Context(), vars["id"], vars["book_id"]); err != nil {
		writeError(w, err, false)
		return
	}
	writeJSON(w, map[string]string{"message": "Book removed from custom category successfully"})
}

// GetBookCustomCategories lists the custom categories a book belongs to.
func (h *Handlers) GetBookCustomCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.db.GetBookCustomCategories(r.Context(), mux.Vars(r)["book_id"])
	if err != nil {
		writeError(w, err, false)
		return
	}
	if cats == nil {
		cats = []*library.CustomCategory{}
	}
	writeJSON(w, cats)
}
