package order

import "errors"

var (
	// ErrOrderNotFound marks stale or invalid order references.
	ErrOrderNotFound = errors.New("order not found")

	// ErrIllegalTransition marks a status move outside the closed
	// transition set.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrVersionConflict marks an optimistic concurrency failure on save.
	ErrVersionConflict = errors.New("version conflict")
)
