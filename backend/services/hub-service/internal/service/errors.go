package service

import "errors"

// Sentinel errors of the service layer. Callers discriminate with errors.Is;
// the transport layer maps them to status codes.
var (
	// ErrValidation marks rejected client input, raised before any store
	// access.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a hard miss: unknown device identifier, unknown
	// alert-type code. Soft misses (unknown endpoint, unresolvable alert
	// scope) are not errors.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a uniqueness conflict, e.g. a duplicate endpoint id
	// on a new binding.
	ErrConflict = errors.New("conflict")
)
