package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"book-library/internal/identity"
	"book-library/internal/metrics"
)

// metricsResponseWriter records the status code and, for event streams,
// the time of the first byte.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode      int
	start           time.Time
	firstByte       time.Time
	headerWritten   bool
	isStreamingPath bool
}

func newMetricsResponseWriter(w http.ResponseWriter, start time.Time, streaming bool) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter:  w,
		statusCode:      http.StatusOK,
		start:           start,
		isStreamingPath: streaming,
	}
}

func (rw *metricsResponseWriter) markFirstByte() {
	if !rw.headerWritten {
		rw.headerWritten = true
		rw.firstByte = time.Now()
	}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	if !rw.headerWritten {
		rw.statusCode = code
	}
	rw.markFirstByte()
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	rw.markFirstByte()
	return rw.ResponseWriter.Write(b)
}

func (rw *metricsResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// GetDuration is the total request time, except for streams where the
// connection stays open for the whole scan. Those report time to first
// byte.
func (rw *metricsResponseWriter) GetDuration() time.Duration {
	if rw.isStreamingPath && rw.headerWritten {
		return rw.firstByte.Sub(rw.start)
	}
	return time.Since(rw.start)
}

// MetricsConfig holds configuration for the metrics middleware
type MetricsConfig struct {
	// SkipPaths are paths that should not be recorded
	SkipPaths []string
	// StreamingPaths are long-lived event streams, matched exactly
	StreamingPaths []string
}

// DefaultMetricsConfig returns the default metrics configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths:      []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"},
		StreamingPaths: []string{"/api/scan"},
	}
}

// Metrics returns a middleware that records Prometheus metrics
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			wrapped := newMetricsResponseWriter(w, time.Now(), isStreamingPath(r.URL.Path, config.StreamingPaths))
			next.ServeHTTP(wrapped, r)

			path := normalizePath(r.URL.Path)
			status := strconv.Itoa(wrapped.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(wrapped.GetDuration().Seconds())
		})
	}
}

func isStreamingPath(path string, streaming []string) bool {
	for _, p := range streaming {
		if path == p {
			return true
		}
	}
	return false
}

// normalizePath replaces book and category IDs with {id} and page
// numbers with {page} so every book shares one label set.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		switch {
		case part == "":
		case identity.Valid(part):
			parts[i] = "{id}"
		case isNumber(part):
			parts[i] = "{page}"
		}
	}
	return strings.Join(parts, "/")
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
