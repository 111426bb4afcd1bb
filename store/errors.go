package store

import "errors"

var (
	// ErrEmptyPath indicates no database path was given.
	ErrEmptyPath = errors.New("store: database path is empty")

	// ErrMissingBucket indicates a bucket expected at open time is absent.
	ErrMissingBucket = errors.New("store: bucket missing")
)
