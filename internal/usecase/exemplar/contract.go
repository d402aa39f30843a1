package exemplar

import (
	"context"

	domcen "github.com/kailas-cloud/intentgate/internal/domain/centroid"
	domex "github.com/kailas-cloud/intentgate/internal/domain/exemplar"
	"github.com/kailas-cloud/intentgate/internal/domain/routing"
)

// ExemplarRepository defines the storage contract for exemplars.
type ExemplarRepository interface {
	EnsureIndex(ctx context.Context) error
	Save(ctx context.Context, ex domex.Exemplar) error
	Retire(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]domex.Exemplar, error)
	Similar(ctx context.Context, vector []float32, k int) ([]domex.Match, error)
}

// CentroidRepository defines the storage contract for centroid generations.
//
//nolint:interfacebloat // generation lifecycle + ANN search
type CentroidRepository interface {
	EnsureIndex(ctx context.Context) error
	NextGeneration(ctx context.Context) (int64, error)
	SaveGeneration(ctx context.Context, g *domcen.Generation) error
	SetCurrent(ctx context.Context, n int64) error
	Current(ctx context.Context) (int64, error)
	LoadGeneration(ctx context.Context, n int64) (*domcen.Generation, error)
	DeleteGeneration(ctx context.Context, n int64) error
	Search(ctx context.Context, n int64, vector []float32, k int) ([]routing.Candidate, error)
}
