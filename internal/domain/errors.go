package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrValidation          = errors.New("validation failed")
	ErrInvalidState        = errors.New("operation not allowed in current state")
	ErrVersionConflict     = errors.New("version conflict")
	ErrReconcileConflict   = errors.New("reconcile conflict")
	ErrUpstreamUnavailable = errors.New("worker unavailable")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
