package middleware

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestParseOrigins(t *testing.T) {
	got := ParseOrigins(" http://localhost:5173, ,https://books.example.com ")
	want := []string{"http://localhost:5173", "https://books.example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseOrigins() = %v, want %v", got, want)
	}
	if got := ParseOrigins(""); len(got) != 0 {
		t.Errorf("Expected no origins, got %v", got)
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allowed origin", func(t *testing.T) {
		handler := CORS([]string{"http://localhost:5173"})(next)
		req := httptest.NewRequest(http.MethodGet, "/api/books", http.NoBody)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
			t.Errorf("Expected origin to be echoed, got %q", got)
		}
		if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("Expected credentials to be allowed for explicit origins")
		}
	})

	t.Run("other origin", func(t *testing.T) {
		handler := CORS([]string{"http://localhost:5173"})(next)
		req := httptest.NewRequest(http.MethodGet, "/api/books", http.NoBody)
		req.Header.Set("Origin", "http://evil.example")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Expected no CORS header, got %q", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		handler := CORS([]string{"*"})(next)
		req := httptest.NewRequest(http.MethodOptions, "/api/config", http.NoBody)
		req.Header.Set("Origin", "http://anywhere.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("Expected wildcard origin, got %q", w.Header().Get("Access-Control-Allow-Origin"))
		}
		if w.Header().Get("Access-Control-Allow-Methods") != http.MethodPut {
			t.Errorf("Expected PUT to be allowed, got %q", w.Header().Get("Access-Control-Allow-Methods"))
		}
	})

	t.Run("disabled", func(t *testing.T) {
		handler := CORS(nil)(next)
		req := httptest.NewRequest(http.MethodGet, "/api/books", http.NoBody)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("Expected no CORS headers when no origins are configured")
		}
	})
}
