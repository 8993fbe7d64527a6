package cache

import "errors"

// Common cache errors.
var (
	// ErrNotFound is returned by a Store that holds no cache yet.
	ErrNotFound = errors.New("cache not found")
)
