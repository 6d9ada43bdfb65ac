package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"book-library/internal/indexer"
	"book-library/internal/library"
	"book-library/internal/logging"
	"book-library/internal/settings"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

func writeJSONCode(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes {"error": message} with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONCode(w, statusCode, map[string]string{"error": message})
}

// writeError maps library errors onto status codes. notFoundOnIO turns
// IO failures into 404, for handlers that serve files from the library.
func writeError(w http.ResponseWriter, err error, notFoundOnIO bool) {
	status := statusFor(err, notFoundOnIO)
	if status >= http.StatusInternalServerError {
		logging.Error("request failed: %v", err)
	}

	var verr *settings.ValidationError
	if errors.As(err, &verr) {
		writeJSONCode(w, status, map[string]interface{}{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
		return
	}
	writeJSONError(w, err.Error(), status)
}

func statusFor(err error, notFoundOnIO bool) int {
	var verr *settings.ValidationError
	switch {
	case errors.Is(err, library.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, library.ErrInvalidState), errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, library.ErrDuplicateID), errors.Is(err, indexer.ErrScanInProgress):
		return http.StatusConflict
	case errors.Is(err, indexer.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, library.ErrIOFailure) && notFoundOnIO:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// pagination reads page and page_size. Out of range values are rejected
// rather than clamped.
func pagination(r *http.Request) (page, size int, err error) {
	page, size = 1, defaultPageSize
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			return 0, 0, errors.New("page must be a positive integer")
		}
	}
	if v := q.Get("page_size"); v != "" {
		if size, err = strconv.Atoi(v); err != nil || size < 1 || size > maxPageSize {
			return 0, 0, errors.New("page_size must be between 1 and 100")
		}
	}
	return page, size, nil
}

func paginate[T any](items []T, page, size int) Page[T] {
	total := len(items)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return Page[T]{
		Items:      out,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: (total + size - 1) / size,
	}
}
