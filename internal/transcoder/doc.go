// Package transcoder converts PDF pages to SVG using the poppler
// pdftocairo tool.
//
// Converted pages are cached on disk as {cacheDir}/{bookID}/{page}.svg
// and reused on later requests. Conversion is disabled, and every page
// request fails with library.ErrRenderFailure, when pdftocairo is not
// available in PATH.
//
// The package also owns the cache sizing helpers (DirSize and ClearDir)
// used for every on-disk render cache.
package transcoder
