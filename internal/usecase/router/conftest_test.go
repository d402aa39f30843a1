package router

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/intentgate/internal/domain"
	domcen "github.com/kailas-cloud/intentgate/internal/domain/centroid"
	domex "github.com/kailas-cloud/intentgate/internal/domain/exemplar"
	"github.com/kailas-cloud/intentgate/internal/domain/routing"
	domterm "github.com/kailas-cloud/intentgate/internal/domain/term"
)

type mockNormalizer struct {
	normalizeFn func(text, language string) ([]string, error)
}

func (m *mockNormalizer) NormalizeTokens(_ context.Context, text, language string) ([]string, error) {
	if m.normalizeFn != nil {
		return m.normalizeFn(text, language)
	}
	return strings.Fields(strings.ToLower(text)), nil
}

type mockCentroids struct {
	candidates []routing.Candidate
	err        error
	gotK       int
}

func (m *mockCentroids) NearestCentroids(_ context.Context, _ []float32, k int) ([]routing.Candidate, error) {
	m.gotK = k
	if m.err != nil {
		return nil, m.err
	}
	out := make([]routing.Candidate, len(m.candidates))
	copy(out, m.candidates)
	return routing.TopK(out, k), nil
}

type mockEmbedder struct {
	vec []float32
	err error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: m.vec}, m.err
}

func defaultConfig() Config {
	return Config{
		AcceptThreshold:          0.8,
		LexicalFallbackThreshold: 0.5,
		Keywords: map[string][]string{
			"real_estate": {"apartment", "Flat", "villa"},
			"vehicles":    {"car", "van"},
			"services":    {"plumber", "car"},
		},
	}
}

func newRouter(cands []routing.Candidate, cfg Config) (*Service, *mockNormalizer, *mockCentroids) {
	n := &mockNormalizer{}
	c := &mockCentroids{candidates: cands}
	return New(n, c, nil, cfg, zap.NewNop()), n, c
}

var anyEmbedding = []float32{0.1, 0.2, 0.3}

// --- In-memory stores for routing through the real registry and exemplar services ---

type memExemplars struct {
	mu    sync.Mutex
	items []domex.Exemplar
}

func (m *memExemplars) EnsureIndex(context.Context) error { return nil }

func (m *memExemplars) Save(_ context.Context, ex domex.Exemplar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, ex)
	return nil
}

func (m *memExemplars) Retire(context.Context, string) error { return domain.ErrNotFound }

func (m *memExemplars) ListActive(context.Context) ([]domex.Exemplar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domex.Exemplar(nil), m.items...), nil
}

func (m *memExemplars) Similar(context.Context, []float32, int) ([]domex.Match, error) {
	return nil, nil
}

type memCentroids struct {
	mu          sync.Mutex
	seq         int64
	current     int64
	generations map[int64]*domcen.Generation
}

func (m *memCentroids) EnsureIndex(context.Context) error { return nil }

func (m *memCentroids) NextGeneration(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq, nil
}

func (m *memCentroids) SaveGeneration(_ context.Context, g *domcen.Generation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generations == nil {
		m.generations = make(map[int64]*domcen.Generation)
	}
	m.generations[g.Number()] = g
	return nil
}

func (m *memCentroids) SetCurrent(_ context.Context, n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = n
	return nil
}

func (m *memCentroids) Current(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == 0 {
		return 0, domain.ErrNotFound
	}
	return m.current, nil
}

func (m *memCentroids) LoadGeneration(_ context.Context, n int64) (*domcen.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.generations[n]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return g, nil
}

func (m *memCentroids) DeleteGeneration(_ context.Context, n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.generations, n)
	return nil
}

func (m *memCentroids) Search(context.Context, int64, []float32, int) ([]routing.Candidate, error) {
	return nil, nil
}

type memTerms struct {
	terms map[string]domterm.Term // language + "/" + folded key
}

func (m *memTerms) Upsert(_ context.Context, t domterm.Term) (domterm.Term, error) {
	if m.terms == nil {
		m.terms = make(map[string]domterm.Term)
	}
	m.terms[t.Language()+"/"+t.LookupKey()] = t
	return t, nil
}

func (m *memTerms) Get(_ context.Context, key, language string) (domterm.Term, error) {
	t, ok := m.terms[language+"/"+key]
	if !ok {
		return domterm.Term{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *memTerms) Lookup(ctx context.Context, key, language string) (string, error) {
	t, err := m.Get(ctx, key, language)
	if err != nil {
		return "", err
	}
	return t.BaseTerm(), nil
}

func (m *memTerms) LookupAny(_ context.Context, key string) (string, error) {
	for _, t := range m.terms {
		if t.LookupKey() == key {
			return t.BaseTerm(), nil
		}
	}
	return "", domain.ErrNotFound
}
