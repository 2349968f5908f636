package repository

import "errors"

var (
	// ErrNotFound means the requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrStaleWrite means a conditional write lost the compare-and-swap: the
	// document changed under us. Nothing was committed; the caller may retry
	// from fresh state.
	ErrStaleWrite = errors.New("stale write: document changed concurrently")
)
