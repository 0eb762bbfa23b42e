// Package apperr defines sentinel errors shared across layers.
package apperr

import "errors"

var (
	// ErrNotFound marks a missing note or enrichment lookup miss (backend 404).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists marks a create against an existing path.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotLoaded marks an operation attempted before the initial snapshot landed.
	ErrNotLoaded = errors.New("collection not loaded")
)
