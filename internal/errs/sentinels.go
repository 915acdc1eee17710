// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	// For a document namespace it means no snapshot has been saved yet.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates optimistic concurrency failure (expected version mismatch).
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyExists indicates an attempt to overwrite an existing object.
	ErrAlreadyExists = errors.New("already exists")

	// ErrStorageUnavailable indicates the backing object store could not be reached or failed.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrValidation indicates a document failed schema or tree checks.
	ErrValidation = errors.New("validation failed")
)
