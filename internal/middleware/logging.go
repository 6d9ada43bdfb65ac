package middleware

import (
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ServiceName identifies the server in the access log #Software directive.
const ServiceName = "BookLibrary/1.0"

const w3cFields = "date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes time-taken sc(Content-Encoding) cs(User-Agent) cs(Referer)"

// statusRecorder remembers the status and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wroteHeader {
		return
	}
	s.status = code
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	n, err := s.ResponseWriter.Write(b)
	s.bytes += int64(n)
	return n, err
}

// Flush keeps scan progress streams working through the logger.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingConfig selects which requests reach the access log.
type LoggingConfig struct {
	// SkipPaths are never logged.
	SkipPaths []string
	// SkipExtensions and StaticPrefixes mark static requests: web assets
	// by extension, covers and SVG pages by route.
	SkipExtensions  []string
	StaticPrefixes  []string
	LogStaticFiles  bool
	LogHealthChecks bool
	// Output defaults to the standard logger's writer.
	Output io.Writer
}

// DefaultLoggingConfig logs API and health requests but not covers, page
// images or web assets.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipExtensions:  []string{".css", ".js", ".ico", ".png", ".jpg", ".jpeg", ".webp", ".svg", ".woff", ".woff2"},
		StaticPrefixes:  []string{"/api/books/covers/", "/api/books/svg/"},
		LogHealthChecks: true,
	}
}

var probePaths = map[string]struct{}{
	"/health":  {},
	"/healthz": {},
	"/livez":   {},
	"/readyz":  {},
}

func (c LoggingConfig) skips(path string) bool {
	if hasAnyPrefix(path, c.SkipPaths) {
		return true
	}
	if _, probe := probePaths[path]; probe && !c.LogHealthChecks {
		return true
	}
	if c.LogStaticFiles {
		return false
	}
	if hasAnyPrefix(path, c.StaticPrefixes) {
		return true
	}
	lower := strings.ToLower(path)
	for _, ext := range c.SkipExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// accessLog writes W3C Extended Log Format entries, preceded once by the
// #Software and #Fields directives.
type accessLog struct {
	out        *log.Logger
	directives sync.Once
}

// Logger returns middleware that writes one access log line per request.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	w := config.Output
	if w == nil {
		w = log.Writer()
	}
	al := &accessLog{out: log.New(w, "", 0)}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.skips(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)
			al.write(r, rec, time.Since(start))
		})
	}
}

func (al *accessLog) write(r *http.Request, rec *statusRecorder, took time.Duration) {
	al.directives.Do(func() {
		al.out.Printf("#Software: %s", ServiceName)
		al.out.Printf("#Fields: %s", w3cFields)
	})

	now := time.Now().UTC()
	fields := []string{
		now.Format("2006-01-02"),
		now.Format("15:04:05"),
		dash(clean(clientIP(r))),
		clean(r.Method),
		quoteField(clean(r.URL.Path)),
		dash(clean(r.URL.RawQuery)),
		strconv.Itoa(rec.status),
		strconv.FormatInt(rec.bytes, 10),
		strconv.FormatInt(took.Milliseconds(), 10),
		dash(rec.Header().Get("Content-Encoding")),
		dash(quoteField(clean(r.UserAgent()))),
		dash(quoteField(clean(r.Referer()))),
	}
	//nolint:gosec // request-derived fields went through clean
	al.out.Println(strings.Join(fields, " "))
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// clean drops control characters so a request is always one line. Line
// breaks become spaces and tabs survive.
func clean(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

// clientIP takes the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address without its port.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// quoteField wraps values containing blanks or quotes in quotes, doubling
// the embedded ones.
func quoteField(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
