package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the API and the health endpoints on r. Static
// book routes are registered before the {id} patterns that would
// otherwise shadow them.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	books := api.PathPrefix("/books").Subrouter()
	books.HandleFunc("", h.ListBooks).Methods(http.MethodGet)
	books.HandleFunc("/favorite/list", h.ListFavoriteBooks).Methods(http.MethodGet)
	books.HandleFunc("/optimization-needed", h.ListOptimizationNeeded).Methods(http.MethodGet)
	books.HandleFunc("/pdf/{id}", h.GetPDF).Methods(http.MethodGet, http.MethodHead)
	books.HandleFunc("/covers/{id}", h.GetCover).Methods(http.MethodGet, http.MethodHead)
	books.HandleFunc("/svg/{id}/{page:[0-9]+}", h.GetPageSVG).Methods(http.MethodGet)
	books.HandleFunc("/{id}/favorite", h.AddFavorite).Methods(http.MethodPost)
	books.HandleFunc("/{id}/favorite", h.RemoveFavorite).Methods(http.MethodDelete)
	books.HandleFunc("/{id}/{page:[0-9]+}", h.GetPage).Methods(http.MethodGet, http.MethodHead)
	books.HandleFunc("/{id}", h.GetBook).Methods(http.MethodGet)

	cats := api.PathPrefix("/categories").Subrouter()
	cats.HandleFunc("", h.ListCategories).Methods(http.MethodGet)
	cats.HandleFunc("/{id}", h.GetCategory).Methods(http.MethodGet)
	cats.HandleFunc("/{id}/books", h.GetCategoryBooks).Methods(http.MethodGet)
	cats.HandleFunc("/{id}/children", h.GetCategoryChildren).Methods(http.MethodGet)

	custom := api.PathPrefix("/custom-categories").Subrouter()
	custom.HandleFunc("", h.ListCustomCategories).Methods(http.MethodGet)
	custom.HandleFunc("", h.CreateCustomCategory).Methods(http.MethodPost)
	custom.HandleFunc("/book/{book_id}", h.GetBookCustomCategories).Methods(http.MethodGet)
	custom.HandleFunc("/{id}", h.GetCustomCategory).Methods(http.MethodGet)
	custom.HandleFunc("/{id}", h.UpdateCustomCategory).Methods(http.MethodPut)
	custom.HandleFunc("/{id}", h.DeleteCustomCategory).Methods(http.MethodDelete)
	custom.HandleFunc("/{id}/books", h.GetCustomCategoryBooks).Methods(http.MethodGet)
	custom.HandleFunc("/{id}/books/{book_id}", h.AddBookToCustomCategory).Methods(http.MethodPost)
	custom.HandleFunc("/{id}/books/{book_id}", h.RemoveBookFromCustomCategory).Methods(http.MethodDelete)

	api.HandleFunc("/config", h.GetConfig).Methods(http.MethodGet)
	api.HandleFunc("/config", h.UpdateConfig).Methods(http.MethodPut)
	api.HandleFunc("/cache/clear", h.ClearCache).Methods(http.MethodDelete)

	api.HandleFunc("/scan", h.Scan).Methods(http.MethodGet)
	api.HandleFunc("/scan/status", h.GetScanStatus).Methods(http.MethodGet)
	api.HandleFunc("/sync", h.Sync).Methods(http.MethodPost)
}
