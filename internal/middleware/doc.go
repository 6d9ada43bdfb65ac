// Package middleware wraps the book library's HTTP handlers.
//
// Logger writes one W3C Extended Log Format line per request and can leave
// out health probes and cover or page image requests. Metrics records
// Prometheus request counters with book IDs and page numbers collapsed so
// label cardinality stays bounded. Compression gzips JSON and SVG bodies.
// CORS is a thin wrapper over github.com/rs/cors.
package middleware
