package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// ParseOrigins splits a comma separated CORS_ORIGINS value. Blank entries
// are dropped.
func ParseOrigins(value string) []string {
	var origins []string
	for _, o := range strings.Split(value, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// CORS allows the reader front end to call the API from other origins.
// With no origins configured the handler is returned unchanged. A single
// "*" allows any origin without credentials.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	wildcard := len(origins) == 1 && origins[0] == "*"
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Range", "Last-Event-ID"},
		ExposedHeaders:   []string{"Content-Length", "Content-Range"},
		AllowCredentials: !wildcard,
		MaxAge:           600,
	})
	return c.Handler
}
