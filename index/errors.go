package index

import "errors"

// Error values for consistent error handling by callers.
var (
	ErrNotFound       = errors.New("record not found")
	ErrInvalidPayload = errors.New("invalid search index payload")
	ErrNoSearcher     = errors.New("no searcher configured")
	ErrEmptySource    = errors.New("no payload source configured")
)
