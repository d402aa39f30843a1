package router

import (
	"context"

	"github.com/kailas-cloud/intentgate/internal/domain/routing"
)

// TermNormalizer turns raw text into canonical, folded tokens.
type TermNormalizer interface {
	NormalizeTokens(ctx context.Context, text, language string) ([]string, error)
}

// CentroidIndex scores an embedding against domain centroids.
type CentroidIndex interface {
	NearestCentroids(ctx context.Context, embedding []float32, k int) ([]routing.Candidate, error)
}
