package intentgate

import "github.com/kailas-cloud/intentgate/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation             = domain.ErrValidation
	ErrNotFound               = domain.ErrNotFound
	ErrUnknownDomain          = domain.ErrUnknownDomain
	ErrDimensionMismatch      = domain.ErrDimensionMismatch
	ErrNoActiveCentroids      = domain.ErrNoActiveCentroids
	ErrRegistryUnavailable    = domain.ErrRegistryUnavailable
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)
