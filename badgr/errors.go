package badgr

import (
	"errors"
	"fmt"
)

// Common domain errors that can be checked with errors.Is.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("badgr: resource not found")

	// ErrDuplicate is returned when a unique record already exists.
	ErrDuplicate = errors.New("badgr: resource already exists")

	// ErrForbidden is returned when the acting user does not own the resource.
	ErrForbidden = errors.New("badgr: permission denied")

	// ErrInvalid is returned when input fails validation or a business rule.
	ErrInvalid = errors.New("badgr: invalid request")
)

// ResourceError wraps an error with the resource that caused it.
type ResourceError struct {
	// Resource is the kind of record (e.g., "email", "assertion", "issuer").
	Resource string

	// ID is the identifier of the resource (if applicable).
	ID string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s: %v", e.Resource, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Resource, e.Err)
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a ResourceError for a missing record.
func NewNotFoundError(resource, id string) error {
	return &ResourceError{Resource: resource, ID: id, Err: ErrNotFound}
}

// NewForbiddenError creates a ResourceError for an ownership violation.
func NewForbiddenError(resource, id string) error {
	return &ResourceError{Resource: resource, ID: id, Err: ErrForbidden}
}

// ValidationError is a business rule violation with a client-facing message.
type ValidationError struct {
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

// NewValidationError creates a ValidationError.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
