package exemplar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/intentgate/internal/domain"
	domcen "github.com/kailas-cloud/intentgate/internal/domain/centroid"
	domex "github.com/kailas-cloud/intentgate/internal/domain/exemplar"
	"github.com/kailas-cloud/intentgate/internal/domain/fold"
	"github.com/kailas-cloud/intentgate/internal/domain/routing"
	"github.com/kailas-cloud/intentgate/internal/domain/vector"
	"github.com/kailas-cloud/intentgate/internal/metrics"
)

// SearchMode selects how NearestCentroids scores the current generation.
type SearchMode string

const (
	// SearchExact scans the in-memory generation. Deterministic.
	SearchExact SearchMode = "exact"
	// SearchANN queries the HNSW centroid index. May omit true nearest members.
	SearchANN SearchMode = "ann"
)

// Config holds the exemplar store settings.
type Config struct {
	Domains    domain.DomainSet
	Dimensions int
	SearchMode SearchMode
}

// Summary describes one recompute.
type Summary struct {
	Generation int64          `json:"generation"`
	Counts     map[string]int `json:"counts"`
	Duration   time.Duration  `json:"duration"`
}

// Service owns exemplars and the centroid generation served to the router.
// Readers load the generation pointer without locking; recompute swaps it.
type Service struct {
	exemplars ExemplarRepository
	centroids CentroidRepository
	embedder  domain.Embedder
	cfg       Config
	logger    *zap.Logger

	current     atomic.Pointer[domcen.Generation]
	recomputeMu sync.Mutex
	// retained is the generation served before current. Its keys outlive the swap
	// so ANN searches already tagged with it still find centroids; the next
	// recompute deletes it. Guarded by recomputeMu.
	retained int64
	now      func() time.Time
}

// New creates an exemplar service. embedder can be nil when only vector input is used.
func New(
	exemplars ExemplarRepository,
	centroids CentroidRepository,
	embedder domain.Embedder,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.SearchMode == "" {
		cfg.SearchMode = SearchExact
	}
	return &Service{
		exemplars: exemplars,
		centroids: centroids,
		embedder:  embedder,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// ApplySchema creates the exemplar and centroid indexes. Safe to call repeatedly.
func (s *Service) ApplySchema(ctx context.Context) error {
	if err := s.exemplars.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("apply exemplar schema: %w", err)
	}
	if err := s.centroids.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("apply centroid schema: %w", err)
	}
	return nil
}

// AddExemplar validates and stores a labeled sample. It affects routing after the next recompute.
func (s *Service) AddExemplar(ctx context.Context, domainID, text string, embedding []float32) (string, error) {
	text = fold.Clean(text)
	if err := s.checkDomain(domainID); err != nil {
		return "", err
	}

	ex, err := domex.New(uuid.NewString(), domainID, text, embedding, s.cfg.Dimensions)
	if err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) {
			return "", fmt.Errorf("add exemplar: %w: got %d, want %d", err, len(embedding), s.cfg.Dimensions)
		}
		return "", fmt.Errorf("add exemplar: %w", err)
	}

	if err := s.exemplars.Save(ctx, ex); err != nil {
		return "", fmt.Errorf("save exemplar: %w", err)
	}
	return ex.ID(), nil
}

// AddExemplarText embeds text with the configured embedder and stores it.
func (s *Service) AddExemplarText(ctx context.Context, domainID, text string) (string, error) {
	ids, err := s.AddExemplarTexts(ctx, domainID, []string{text})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// AddExemplarTexts embeds texts in one batch and stores them under domainID.
func (s *Service) AddExemplarTexts(ctx context.Context, domainID string, texts []string) ([]string, error) {
	if s.embedder == nil {
		return nil, errors.New("add exemplar text: embedder is not configured")
	}
	if err := s.checkDomain(domainID); err != nil {
		return nil, err
	}
	cleaned := make([]string, len(texts))
	for i, text := range texts {
		cleaned[i] = fold.Clean(text)
		if cleaned[i] == "" {
			return nil, domain.NewValidationError("text", "is required")
		}
	}
	if len(cleaned) == 0 {
		return []string{}, nil
	}

	res, err := domain.EmbedAll(ctx, s.embedder, cleaned)
	if err != nil {
		return nil, fmt.Errorf("embed exemplars: %w", err)
	}
	if len(res.Embeddings) != len(cleaned) {
		return nil, fmt.Errorf("embed exemplars: %w: got %d vectors for %d texts",
			domain.ErrEmbeddingProviderError, len(res.Embeddings), len(cleaned))
	}

	ids := make([]string, 0, len(cleaned))
	for i, text := range cleaned {
		id, err := s.AddExemplar(ctx, domainID, text, res.Embeddings[i])
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// RetireExemplar excludes an exemplar from the next recompute.
func (s *Service) RetireExemplar(ctx context.Context, id string) error {
	if err := s.exemplars.Retire(ctx, id); err != nil {
		return fmt.Errorf("retire exemplar: %w", err)
	}
	return nil
}

// Similar returns the active exemplars closest to embedding.
func (s *Service) Similar(ctx context.Context, embedding []float32, k int) ([]domex.Match, error) {
	if err := s.checkDimensions(embedding); err != nil {
		return nil, err
	}
	matches, err := s.exemplars.Similar(ctx, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("similar exemplars: %w", err)
	}
	return matches, nil
}

// NearestCentroids scores embedding against the current generation.
// Results are sorted by similarity descending, ties by domain id, at most k entries.
func (s *Service) NearestCentroids(ctx context.Context, embedding []float32, k int) ([]routing.Candidate, error) {
	if err := s.checkDimensions(embedding); err != nil {
		return nil, err
	}
	gen := s.current.Load()
	if gen == nil || gen.Len() == 0 {
		return nil, domain.ErrNoActiveCentroids
	}
	if k <= 0 {
		return []routing.Candidate{}, nil
	}

	if s.cfg.SearchMode == SearchANN {
		cs, err := s.centroids.Search(ctx, gen.Number(), embedding, k)
		if err != nil {
			return nil, fmt.Errorf("nearest centroids: %w", err)
		}
		return routing.TopK(cs, k), nil
	}

	cs := make([]routing.Candidate, 0, gen.Len())
	for _, c := range gen.Centroids() {
		cs = append(cs, routing.Candidate{
			Domain:     c.Domain(),
			Similarity: vector.Cosine(embedding, c.Vector()),
		})
	}
	return routing.TopK(cs, k), nil
}

// RecomputeCentroids rebuilds every centroid from active exemplars into a new generation
// and swaps it in. Concurrent calls are serialized; readers never see a partial generation.
// The replaced generation stays in storage until the following recompute.
func (s *Service) RecomputeCentroids(ctx context.Context) (Summary, error) {
	s.recomputeMu.Lock()
	defer s.recomputeMu.Unlock()

	start := s.now()
	summary, err := s.recompute(ctx, start)
	metrics.RecomputeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RecomputeTotal.WithLabelValues("error").Inc()
		s.logger.Error("Centroid recompute failed", zap.Error(err))
		return Summary{}, err
	}
	metrics.RecomputeTotal.WithLabelValues("ok").Inc()

	s.logger.Info("Centroids recomputed",
		zap.Int64("generation", summary.Generation),
		zap.Int("domains", len(summary.Counts)),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (s *Service) recompute(ctx context.Context, start time.Time) (Summary, error) {
	active, err := s.exemplars.ListActive(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list active exemplars: %w", err)
	}

	accs := make(map[string]*vector.Accumulator)
	for _, ex := range active {
		if !s.cfg.Domains.Contains(ex.Domain()) {
			s.logger.Warn("Skipping exemplar of unconfigured domain",
				zap.String("exemplar_id", ex.ID()),
				zap.String("domain", ex.Domain()),
			)
			continue
		}
		acc, ok := accs[ex.Domain()]
		if !ok {
			acc = vector.NewAccumulator(s.cfg.Dimensions)
			accs[ex.Domain()] = acc
		}
		if !acc.Add(ex.Embedding()) {
			s.logger.Warn("Skipping exemplar with wrong dimensions",
				zap.String("exemplar_id", ex.ID()),
				zap.Int("dimensions", len(ex.Embedding())),
			)
		}
	}

	computedAt := start.UnixMilli()
	counts := make(map[string]int, len(accs))
	centroids := make([]domcen.Centroid, 0, len(accs))
	for domainID, acc := range accs {
		if acc.Count() == 0 {
			continue
		}
		counts[domainID] = acc.Count()
		centroids = append(centroids, domcen.New(domainID, acc.UnitMean(), acc.Count(), computedAt))
	}

	n, err := s.centroids.NextGeneration(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("allocate generation: %w", err)
	}
	gen := domcen.NewGeneration(n, centroids, computedAt)

	if err := s.centroids.SaveGeneration(ctx, gen); err != nil {
		return Summary{}, fmt.Errorf("save generation %d: %w", n, err)
	}
	if err := s.centroids.SetCurrent(ctx, n); err != nil {
		s.dropGeneration(ctx, n)
		return Summary{}, fmt.Errorf("set current generation %d: %w", n, err)
	}

	prev := s.current.Swap(gen)
	s.publish(gen)

	if prev != nil && prev.Number() != n {
		if s.retained != 0 && s.retained != prev.Number() {
			s.dropGeneration(ctx, s.retained)
		}
		s.retained = prev.Number()
	}

	return Summary{Generation: n, Counts: counts, Duration: s.now().Sub(start)}, nil
}

// Load restores the persisted current generation. A missing generation leaves the store empty.
func (s *Service) Load(ctx context.Context) error {
	s.recomputeMu.Lock()
	defer s.recomputeMu.Unlock()

	n, err := s.centroids.Current(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Info("No centroid generation persisted yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load current generation: %w", err)
	}

	gen, err := s.centroids.LoadGeneration(ctx, n)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		gen = domcen.NewGeneration(n, nil, 0)
	case err != nil:
		return fmt.Errorf("load generation %d: %w", n, err)
	}

	s.current.Store(gen)
	s.publish(gen)
	if n > 1 {
		s.retained = n - 1
	}
	s.logger.Info("Centroid generation loaded",
		zap.Int64("generation", n),
		zap.Int("domains", gen.Len()),
	)
	return nil
}

// Centroids returns the generation currently served, or nil before the first recompute or load.
func (s *Service) Centroids() *domcen.Generation {
	return s.current.Load()
}

// CentroidCount returns the number of domains in the served generation.
func (s *Service) CentroidCount() int {
	if gen := s.current.Load(); gen != nil {
		return gen.Len()
	}
	return 0
}

// Dimensions returns the configured embedding length.
func (s *Service) Dimensions() int { return s.cfg.Dimensions }

func (s *Service) checkDomain(domainID string) error {
	if domainID == "" {
		return domain.NewValidationError("domain", "is required")
	}
	if !s.cfg.Domains.Contains(domainID) {
		return fmt.Errorf("%w: %s", domain.ErrUnknownDomain, domainID)
	}
	return nil
}

func (s *Service) checkDimensions(embedding []float32) error {
	if len(embedding) != s.cfg.Dimensions {
		return fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(embedding), s.cfg.Dimensions)
	}
	return nil
}

func (s *Service) dropGeneration(ctx context.Context, n int64) {
	if err := s.centroids.DeleteGeneration(ctx, n); err != nil {
		s.logger.Warn("Failed to delete centroid generation",
			zap.Int64("generation", n),
			zap.Error(err),
		)
	}
}

func (s *Service) publish(gen *domcen.Generation) {
	metrics.CentroidGeneration.Set(float64(gen.Number()))
	metrics.CentroidExemplars.Reset()
	for _, c := range gen.Centroids() {
		metrics.CentroidExemplars.WithLabelValues(c.Domain()).Set(float64(c.ExemplarCount()))
	}
}
