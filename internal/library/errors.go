package library

import "errors"

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID is returned when an insert collides with an existing ID.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrInvalidState is returned for operations that make no sense for the
	// entity, such as requesting an SVG page of an image book.
	ErrInvalidState = errors.New("invalid state")

	// ErrIOFailure wraps filesystem failures.
	ErrIOFailure = errors.New("io failure")

	// ErrRenderFailure wraps decode, resize and encode failures.
	ErrRenderFailure = errors.New("render failure")
)
