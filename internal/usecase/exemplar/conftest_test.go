package exemplar

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/intentgate/internal/domain"
	domcen "github.com/kailas-cloud/intentgate/internal/domain/centroid"
	domex "github.com/kailas-cloud/intentgate/internal/domain/exemplar"
	"github.com/kailas-cloud/intentgate/internal/domain/routing"
)

// --- Exemplar repository ---

type memExemplars struct {
	mu      sync.Mutex
	items   map[string]domex.Exemplar
	seq     int64
	saveErr error
	listErr error
	indexed bool
	similar []domex.Match
}

func newMemExemplars() *memExemplars {
	return &memExemplars{items: make(map[string]domex.Exemplar)}
}

func (m *memExemplars) EnsureIndex(_ context.Context) error {
	m.indexed = true
	return nil
}

func (m *memExemplars) Save(_ context.Context, ex domex.Exemplar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.seq++
	m.items[ex.ID()] = domex.Reconstruct(ex.ID(), ex.Domain(), ex.Text(), ex.Embedding(), m.seq, false)
	return nil
}

func (m *memExemplars) Retire(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.items[id] = domex.Reconstruct(ex.ID(), ex.Domain(), ex.Text(), ex.Embedding(), ex.CreatedAt(), true)
	return nil
}

func (m *memExemplars) ListActive(_ context.Context) ([]domex.Exemplar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domex.Exemplar, 0, len(m.items))
	for _, ex := range m.items {
		if !ex.Retired() {
			out = append(out, ex)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt() < out[j].CreatedAt() })
	return out, nil
}

func (m *memExemplars) Similar(_ context.Context, _ []float32, _ int) ([]domex.Match, error) {
	return m.similar, nil
}

// --- Centroid repository ---

type memCentroids struct {
	mu          sync.Mutex
	seq         int64
	current     int64
	hasCurrent  bool
	generations map[int64]*domcen.Generation
	deleted     []int64
	indexed     bool
	setErr      error
	searchFn    func(n int64, k int) ([]routing.Candidate, error)
}

func newMemCentroids() *memCentroids {
	return &memCentroids{generations: make(map[int64]*domcen.Generation)}
}

func (m *memCentroids) EnsureIndex(_ context.Context) error {
	m.indexed = true
	return nil
}

func (m *memCentroids) NextGeneration(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq, nil
}

func (m *memCentroids) SaveGeneration(_ context.Context, g *domcen.Generation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations[g.Number()] = g
	return nil
}

func (m *memCentroids) SetCurrent(_ context.Context, n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.current, m.hasCurrent = n, true
	return nil
}

func (m *memCentroids) Current(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasCurrent {
		return 0, domain.ErrNotFound
	}
	return m.current, nil
}

func (m *memCentroids) LoadGeneration(_ context.Context, n int64) (*domcen.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.generations[n]
	if !ok || g.Len() == 0 {
		return nil, domain.ErrNotFound
	}
	return g, nil
}

func (m *memCentroids) DeleteGeneration(_ context.Context, n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.generations, n)
	m.deleted = append(m.deleted, n)
	return nil
}

func (m *memCentroids) Search(_ context.Context, n int64, _ []float32, k int) ([]routing.Candidate, error) {
	return m.searchFn(n, k)
}

// --- Embedder ---

type stubEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (e *stubEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.calls++
	v, ok := e.vectors[text]
	if !ok {
		return domain.EmbeddingResult{}, domain.ErrEmbeddingProviderError
	}
	return domain.EmbeddingResult{Embedding: v}, nil
}

// --- Helpers ---

const testDim = 3

func newTestService(mode SearchMode) (*Service, *memExemplars, *memCentroids) {
	ex := newMemExemplars()
	cen := newMemCentroids()
	svc := New(ex, cen, nil, Config{
		Domains:    domain.NewDomainSet("real_estate", "vehicles", "services"),
		Dimensions: testDim,
		SearchMode: mode,
	}, zap.NewNop())
	return svc, ex, cen
}
