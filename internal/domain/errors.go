package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrUnknownDomain signals a domain id outside the configured set.
	ErrUnknownDomain = errors.New("unknown domain")
	// ErrDimensionMismatch signals an embedding whose length differs from the store dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrNoActiveCentroids signals that no centroid generation has been computed yet.
	ErrNoActiveCentroids = errors.New("no active centroids")
	// ErrRegistryUnavailable signals that the term registry backing store failed.
	ErrRegistryUnavailable = errors.New("term registry unavailable")

	// ErrUnauthenticated signals that a resource requires an authenticated identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotActive signals an operation on a session that is not Active.
	ErrNotActive = errors.New("session not active")
	// ErrBackpressureExceeded signals a full outbound queue; the frame was dropped.
	ErrBackpressureExceeded = errors.New("backpressure exceeded")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// ValidationError wraps ErrValidation with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a validation error for field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
