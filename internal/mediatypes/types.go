package mediatypes

import (
	"path/filepath"
	"sort"
	"strings"
)

// FileType represents the role a directory entry plays in the library.
type FileType string

const (
	// FileTypeFolder represents a directory.
	FileTypeFolder FileType = "folder"
	// FileTypeImage represents a page image.
	FileTypeImage FileType = "image"
	// FileTypePDF represents a PDF document.
	FileTypePDF FileType = "pdf"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// SortOrder specifies the direction of sorting.
type SortOrder string

const (
	// SortAsc sorts in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts in descending order.
	SortDesc SortOrder = "desc"
)

// ParseSortOrder returns SortAsc for "asc" (any case) and SortDesc otherwise.
func ParseSortOrder(s string) SortOrder {
	if strings.EqualFold(s, string(SortAsc)) {
		return SortAsc
	}
	return SortDesc
}

// PDFExtension is the only document format the library recognises.
const PDFExtension = ".pdf"

// DefaultImageExtensions are the page image formats recognised when no
// override is configured.
var DefaultImageExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff",
	".webp", ".avif", ".heic", ".svg",
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".avif": "image/avif",
	".heic": "image/heic",
	".heif": "image/heif",
	".pdf":  "application/pdf",
}

// Ext returns the lower-cased extension of name including the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// NormalizeExt lower-cases ext and ensures a leading dot. Empty input
// stays empty.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// ExtSet is a set of normalized file extensions.
type ExtSet map[string]struct{}

// NewExtSet builds a set from extensions in any case, with or without dots.
func NewExtSet(exts ...string) ExtSet {
	set := make(ExtSet, len(exts))
	for _, e := range exts {
		if n := NormalizeExt(e); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// Has reports whether ext (already lower-cased) is in the set.
func (s ExtSet) Has(ext string) bool {
	_, ok := s[ext]
	return ok
}

// Contains reports whether every extension of other is in s.
func (s ExtSet) Contains(other ExtSet) bool {
	for e := range other {
		if !s.Has(e) {
			return false
		}
	}
	return true
}

// Slice returns the extensions in sorted order.
func (s ExtSet) Slice() []string {
	out := make([]string, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Classify returns the FileType of a file name given the configured image
// extensions.
func Classify(name string, images ExtSet) FileType {
	ext := Ext(name)
	switch {
	case ext == PDFExtension:
		return FileTypePDF
	case images.Has(ext):
		return FileTypeImage
	default:
		return FileTypeOther
	}
}

// GetMimeType returns the MIME type for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
