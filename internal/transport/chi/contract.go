package chi

import (
	"context"

	domcen "github.com/kailas-cloud/intentgate/internal/domain/centroid"
	"github.com/kailas-cloud/intentgate/internal/domain/routing"
	domterm "github.com/kailas-cloud/intentgate/internal/domain/term"
	exemplaruc "github.com/kailas-cloud/intentgate/internal/usecase/exemplar"
	healthuc "github.com/kailas-cloud/intentgate/internal/usecase/health"
)

// TermService is the term registry surface exposed over HTTP.
type TermService interface {
	Upsert(ctx context.Context, baseTerm, localized, language string) (domterm.Term, error)
	Normalize(ctx context.Context, raw, language string) string
}

// ExemplarService is the exemplar store surface exposed over HTTP.
type ExemplarService interface {
	ApplySchema(ctx context.Context) error
	AddExemplar(ctx context.Context, domainID, text string, embedding []float32) (string, error)
	AddExemplarText(ctx context.Context, domainID, text string) (string, error)
	RetireExemplar(ctx context.Context, id string) error
	RecomputeCentroids(ctx context.Context) (exemplaruc.Summary, error)
	Centroids() *domcen.Generation
}

// RouteService classifies turns for the dry-run endpoint.
type RouteService interface {
	Route(ctx context.Context, rawText string, embedding []float32, language string) (routing.Decision, error)
	RouteText(ctx context.Context, text, language string) (routing.Decision, error)
}

// HealthService aggregates component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}
