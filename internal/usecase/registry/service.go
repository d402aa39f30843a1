package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/intentgate/internal/domain"
	"github.com/kailas-cloud/intentgate/internal/domain/fold"
	domterm "github.com/kailas-cloud/intentgate/internal/domain/term"
)

// MaxPhraseTokens is the longest multi-word phrase NormalizeTokens tries to resolve.
const MaxPhraseTokens = 3

// Service maps localized surface forms to canonical terms.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// New creates a term registry service.
func New(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Upsert inserts or replaces the term keyed by (folded localized form, language).
func (s *Service) Upsert(ctx context.Context, baseTerm, localized, language string) (domterm.Term, error) {
	t, err := domterm.New(uuid.NewString(), baseTerm, localized, language)
	if err != nil {
		return domterm.Term{}, fmt.Errorf("validate term: %w", err)
	}

	saved, err := s.repo.Upsert(ctx, t)
	if err != nil {
		return domterm.Term{}, fmt.Errorf("upsert term: %w", err)
	}
	return saved, nil
}

// Get returns the stored term for a localized form in one language.
func (s *Service) Get(ctx context.Context, localized, language string) (domterm.Term, error) {
	key := fold.Fold(fold.Clean(localized))
	if key == "" {
		return domterm.Term{}, domain.NewValidationError("localized_term", "is required")
	}

	t, err := s.repo.Get(ctx, key, domterm.NormalizeLanguage(language))
	if err != nil {
		return domterm.Term{}, fmt.Errorf("get term: %w", err)
	}
	return t, nil
}

// Normalize returns the canonical term for raw, or raw in title case when nothing matches.
// Store failures degrade to the title-case pass-through and are logged.
func (s *Service) Normalize(ctx context.Context, raw, language string) string {
	cleaned := fold.Clean(raw)
	if cleaned == "" {
		return ""
	}

	base, ok, err := s.resolve(ctx, cleaned, domterm.NormalizeLanguage(language))
	if err != nil {
		s.logger.Warn("Term lookup failed, passing input through",
			zap.String("language", language),
			zap.Error(err),
		)
	}
	if ok {
		return base
	}
	return fold.Title(fold.Lower(cleaned))
}

// NormalizeTokens splits text into word tokens and replaces every recognized phrase
// (longest first, up to MaxPhraseTokens words) with its canonical term.
// Output tokens are lowercased and folded for keyword matching.
func (s *Service) NormalizeTokens(ctx context.Context, text, language string) ([]string, error) {
	tokens := fold.Tokens(text)
	lang := domterm.NormalizeLanguage(language)

	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		consumed := 1
		canonical := fold.Fold(tokens[i])

		for n := min(MaxPhraseTokens, len(tokens)-i); n >= 1; n-- {
			base, ok, err := s.resolve(ctx, strings.Join(tokens[i:i+n], " "), lang)
			if err != nil {
				return nil, fmt.Errorf("normalize tokens: %w: %w", domain.ErrRegistryUnavailable, err)
			}
			if ok {
				consumed = n
				canonical = fold.Fold(base)
				break
			}
		}

		out = append(out, canonical)
		i += consumed
	}
	return out, nil
}

// resolve looks a phrase up under its language, then under every language.
// Terms are stored under their folded form only, so the folded key is the only lookup.
func (s *Service) resolve(ctx context.Context, phrase, language string) (string, bool, error) {
	key := fold.Fold(phrase)

	base, err := s.repo.Lookup(ctx, key, language)
	if found, err := classify(err); err != nil || found {
		return base, found, err
	}
	base, err = s.repo.LookupAny(ctx, key)
	found, err := classify(err)
	return base, found, err
}

func classify(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
