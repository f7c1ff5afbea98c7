package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrNotDirectory      = errors.New("not a directory")
	ErrEmptyCanvas       = errors.New("empty canvas")
	ErrUnsupportedFormat = errors.New("unsupported format")
)
