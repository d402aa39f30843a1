package registry

import (
	"context"
	"errors"

	"github.com/kailas-cloud/intentgate/internal/domain"
	domterm "github.com/kailas-cloud/intentgate/internal/domain/term"
)

// memRepo is an in-memory Repository keyed the same way as the Valkey repository.
type memRepo struct {
	terms   map[string]domterm.Term
	anyIdx  map[string]map[string]string
	err     error
	lookups int
}

func newMemRepo() *memRepo {
	return &memRepo{
		terms:  make(map[string]domterm.Term),
		anyIdx: make(map[string]map[string]string),
	}
}

func (m *memRepo) Upsert(_ context.Context, t domterm.Term) (domterm.Term, error) {
	if m.err != nil {
		return domterm.Term{}, m.err
	}
	k := t.Language() + "\x00" + t.LookupKey()
	if existing, ok := m.terms[k]; ok {
		t = t.WithID(existing.ID())
	}
	m.terms[k] = t
	if m.anyIdx[t.LookupKey()] == nil {
		m.anyIdx[t.LookupKey()] = make(map[string]string)
	}
	m.anyIdx[t.LookupKey()][t.Language()] = t.BaseTerm()
	return t, nil
}

func (m *memRepo) Get(_ context.Context, key, language string) (domterm.Term, error) {
	if m.err != nil {
		return domterm.Term{}, m.err
	}
	t, ok := m.terms[language+"\x00"+key]
	if !ok {
		return domterm.Term{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *memRepo) Lookup(ctx context.Context, key, language string) (string, error) {
	m.lookups++
	t, err := m.Get(ctx, key, language)
	if err != nil {
		return "", err
	}
	return t.BaseTerm(), nil
}

func (m *memRepo) LookupAny(_ context.Context, key string) (string, error) {
	m.lookups++
	if m.err != nil {
		return "", m.err
	}
	langs, ok := m.anyIdx[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	if base, ok := langs[domterm.LanguageUndetermined]; ok {
		return base, nil
	}
	for _, base := range langs {
		return base, nil
	}
	return "", domain.ErrNotFound
}

var errStoreDown = errors.New("connection refused")
