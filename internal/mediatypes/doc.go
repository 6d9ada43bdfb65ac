// Package mediatypes provides shared file classification helpers for the
// book library.
//
// This package exists as a dependency-free foundation that can be imported by other
// packages without creating import cycles. It contains primitive types, constants,
// and pure utility functions with no external dependencies beyond the standard library.
//
// # Extension Sets
//
// Image formats are configurable, so classification goes through an ExtSet
// built from the active settings:
//
//	images := mediatypes.NewExtSet(settings.ImageExts...)
//	switch mediatypes.Classify(name, images) {
//	case mediatypes.FileTypePDF:
//	    // a PDF book
//	case mediatypes.FileTypeImage:
//	    // a page of an image book
//	}
//
// # MIME Types
//
// Use GetMimeType to get the appropriate MIME type for HTTP responses:
//
//	mimeType := mediatypes.GetMimeType(mediatypes.Ext(path)) // e.g., "image/jpeg"
package mediatypes
