package intentgate

import (
	"context"
	"fmt"
	"time"

	domterm "github.com/kailas-cloud/intentgate/internal/domain/term"
)

// TermService manages the localized vocabulary used to normalize turns.
type TermService struct {
	svc termUseCase
	obs *observer
}

// Upsert maps localized (in language) to base. Re-upserting the same form replaces its base term.
func (s *TermService) Upsert(ctx context.Context, base, localized, language string) (t Term, err error) {
	start := time.Now()
	defer func() { s.obs.observe("term.upsert", start, err) }()

	saved, err := s.svc.Upsert(ctx, base, localized, language)
	if err != nil {
		return Term{}, fmt.Errorf("upsert term: %w", err)
	}
	return termFromDomain(saved), nil
}

// Get returns the term registered for localized in language, or ErrNotFound.
func (s *TermService) Get(ctx context.Context, localized, language string) (t Term, err error) {
	start := time.Now()
	defer func() { s.obs.observe("term.get", start, err) }()

	found, err := s.svc.Get(ctx, localized, language)
	if err != nil {
		return Term{}, fmt.Errorf("get term: %w", err)
	}
	return termFromDomain(found), nil
}

// Normalize returns the canonical form of raw. Unknown input comes back cleaned but unchanged.
func (s *TermService) Normalize(ctx context.Context, raw, language string) string {
	start := time.Now()
	defer s.obs.observe("term.normalize", start, nil)
	return s.svc.Normalize(ctx, raw, language)
}

func termFromDomain(t domterm.Term) Term {
	return Term{
		ID:        t.ID(),
		Base:      t.BaseTerm(),
		Localized: t.LocalizedTerm(),
		Language:  t.Language(),
	}
}
