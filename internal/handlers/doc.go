// Package handlers provides the HTTP API of the book library.
//
// It includes handlers for:
//   - Books: paginated listings, pages, covers, PDF files and SVG pages
//   - The category tree built from the library folders
//   - Custom categories and their members
//   - Settings, render cache maintenance and scans (streamed as SSE)
//   - Health checks and build information
//
// Library errors are mapped onto status codes in one place, statusFor.
package handlers
