package sharing

import (
	"errors"
	"fmt"
)

// Sharing errors that can be checked with errors.Is.
var (
	// ErrUnsupportedProvider is returned when a provider code is not registered.
	ErrUnsupportedProvider = errors.New("sharing: provider not supported")

	// ErrInvalidTarget is returned when the share target cannot be linked to.
	ErrInvalidTarget = errors.New("sharing: invalid share target")

	// ErrProviderUnavailable is returned by a builder that cannot produce a URL for the target.
	ErrProviderUnavailable = errors.New("sharing: provider unavailable")
)

// UnsupportedProviderError carries the rejected provider code exactly as the caller supplied it.
type UnsupportedProviderError struct {
	Code string
}

// Error implements the error interface.
func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("provider not supported: %s", e.Code)
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *UnsupportedProviderError) Unwrap() error {
	return ErrUnsupportedProvider
}

// InvalidTargetError describes why a share target was rejected.
type InvalidTargetError struct {
	URL    string
	Reason string
}

// Error implements the error interface.
func (e *InvalidTargetError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("invalid share target: %s", e.Reason)
	}
	return fmt.Sprintf("invalid share target %q: %s", e.URL, e.Reason)
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *InvalidTargetError) Unwrap() error {
	return ErrInvalidTarget
}
