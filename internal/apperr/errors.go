package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	// ErrPathEscapesRoot is returned when a path resolves above the book root.
	ErrPathEscapesRoot = errors.New("path escapes book root")
	// ErrMalformedLink marks a link destination that cannot be read as a path.
	ErrMalformedLink = errors.New("malformed link")
	// ErrMissingRelativePath is returned when no relative path exists between two chapters.
	ErrMissingRelativePath = errors.New("no relative path")
)
