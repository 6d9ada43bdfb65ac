// Package media reads, measures and renders book pages.
//
// Page dimensions come from image headers (image.DecodeConfig) with a
// libvips fallback for formats Go cannot parse. AnalyzeImages and
// AnalyzePDF sample the first, middle and last page to choose a display
// strategy.
//
// Renderer produces the on-disk render cache: JPEG covers, width-bounded
// page thumbnails and, through the transcoder package, SVG pages of PDF
// books. Rendering runs on a workers.Pool and concurrent requests for the
// same artifact are deduplicated.
//
// libvips must be initialized with InitVips before PDF inspection or
// rasterization and released with ShutdownVips at exit.
package media
