package term

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/kailas-cloud/intentgate/internal/domain"
	domterm "github.com/kailas-cloud/intentgate/internal/domain/term"
)

// store is the consumer interface for terms (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Repo stores terms as hashes keyed by (language, folded localized form) and keeps a
// cross-language index per folded form for language-agnostic lookup.
type Repo struct {
	store store
}

// New creates a term repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Upsert inserts or replaces t. Replacing keeps the stored ID; t.ID() is used for inserts.
func (r *Repo) Upsert(ctx context.Context, t domterm.Term) (domterm.Term, error) {
	key := t.LookupKey()

	existing, err := r.Get(ctx, key, t.Language())
	switch {
	case err == nil:
		t = t.WithID(existing.ID())
	case !errors.Is(err, domain.ErrNotFound):
		return domterm.Term{}, err
	}

	if err := r.store.HSet(ctx, termKey(t.Language(), key), termToHash(t)); err != nil {
		return domterm.Term{}, fmt.Errorf("hset term %s/%s: %w", t.Language(), key, err)
	}
	if err := r.store.HSet(ctx, anyKey(key), map[string]string{t.Language(): t.BaseTerm()}); err != nil {
		return domterm.Term{}, fmt.Errorf("hset term index %s: %w", key, err)
	}
	return t, nil
}

// Get returns the term registered for a folded key in language.
func (r *Repo) Get(ctx context.Context, key, language string) (domterm.Term, error) {
	m, err := r.store.HGetAll(ctx, termKey(language, key))
	if err != nil {
		return domterm.Term{}, fmt.Errorf("hgetall term %s/%s: %w", language, key, err)
	}
	if len(m) == 0 {
		return domterm.Term{}, domain.ErrNotFound
	}
	return termFromHash(m), nil
}

// Lookup returns the base term for a folded key in language.
func (r *Repo) Lookup(ctx context.Context, key, language string) (string, error) {
	t, err := r.Get(ctx, key, language)
	if err != nil {
		return "", err
	}
	return t.BaseTerm(), nil
}

// LookupAny returns the base term for key under any language.
// The language-independent entry wins, then the lexically smallest language tag.
func (r *Repo) LookupAny(ctx context.Context, key string) (string, error) {
	m, err := r.store.HGetAll(ctx, anyKey(key))
	if err != nil {
		return "", fmt.Errorf("hgetall term index %s: %w", key, err)
	}
	if len(m) == 0 {
		return "", domain.ErrNotFound
	}
	if base, ok := m[domterm.LanguageUndetermined]; ok {
		return base, nil
	}
	langs := make([]string, 0, len(m))
	for lang := range m {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	return m[langs[0]], nil
}

// Key patterns: intentgate:term:{lang}:{folded}, intentgate:termidx:{folded}

func termKey(language, key string) string {
	return fmt.Sprintf("%sterm:%s:%s", domain.KeyPrefix, language, key)
}

func anyKey(key string) string {
	return domain.KeyPrefix + "termidx:" + key
}

func termToHash(t domterm.Term) map[string]string {
	return map[string]string{
		"id":             t.ID(),
		"base_term":      t.BaseTerm(),
		"localized_term": t.LocalizedTerm(),
		"language":       t.Language(),
	}
}

func termFromHash(m map[string]string) domterm.Term {
	return domterm.Reconstruct(m["id"], m["base_term"], m["localized_term"], m["language"])
}
