// Package sentinel holds the infrastructure-level errors returned by stores.
// Stores wrap these with %w so services can translate them into domain errors.
package sentinel

import "errors"

var (
	// ErrNotFound means the record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a uniqueness constraint rejected the write.
	ErrConflict = errors.New("conflict")
)
