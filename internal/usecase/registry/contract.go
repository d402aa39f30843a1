package registry

import (
	"context"

	domterm "github.com/kailas-cloud/intentgate/internal/domain/term"
)

// Repository defines the storage contract for terms.
// Lookup and LookupAny take a folded key and return the base term or domain.ErrNotFound.
type Repository interface {
	Upsert(ctx context.Context, t domterm.Term) (domterm.Term, error)
	Get(ctx context.Context, key, language string) (domterm.Term, error)
	Lookup(ctx context.Context, key, language string) (string, error)
	LookupAny(ctx context.Context, key string) (string, error)
}
