package intentgate

import (
	"context"
	"fmt"
	"time"
)

// ExemplarService manages labeled exemplars and the centroid generation used for routing.
type ExemplarService struct {
	svc exemplarUseCase
	obs *observer
}

// ApplySchema creates the exemplar and centroid indexes. Safe to call repeatedly.
func (s *ExemplarService) ApplySchema(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("schema.apply", start, err) }()

	if err = s.svc.ApplySchema(ctx); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Add stores a labeled sample with its embedding and returns its id.
// Routing sees it after the next Recompute.
func (s *ExemplarService) Add(ctx context.Context, domain, text string, embedding []float32) (id string, err error) {
	start := time.Now()
	defer func() { s.obs.observe("exemplar.add", start, err) }()

	id, err = s.svc.AddExemplar(ctx, domain, text, embedding)
	if err != nil {
		return "", fmt.Errorf("add exemplar: %w", err)
	}
	return id, nil
}

// AddText embeds text with the configured Embedder and stores it.
func (s *ExemplarService) AddText(ctx context.Context, domain, text string) (id string, err error) {
	start := time.Now()
	defer func() { s.obs.observe("exemplar.add_text", start, err) }()

	id, err = s.svc.AddExemplarText(ctx, domain, text)
	if err != nil {
		return "", fmt.Errorf("add exemplar text: %w", err)
	}
	return id, nil
}

// AddTexts embeds texts in one batch when the Embedder supports it.
// On error the ids stored so far are returned with it.
func (s *ExemplarService) AddTexts(ctx context.Context, domain string, texts []string) (ids []string, err error) {
	start := time.Now()
	defer func() { s.obs.observe("exemplar.add_texts", start, err) }()

	ids, err = s.svc.AddExemplarTexts(ctx, domain, texts)
	if err != nil {
		return ids, fmt.Errorf("add exemplar texts: %w", err)
	}
	return ids, nil
}

// Retire excludes an exemplar from the next Recompute.
func (s *ExemplarService) Retire(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("exemplar.retire", start, err) }()

	if err = s.svc.RetireExemplar(ctx, id); err != nil {
		return fmt.Errorf("retire exemplar: %w", err)
	}
	return nil
}

// Recompute rebuilds every domain centroid from the active exemplars and swaps the
// served generation atomically.
func (s *ExemplarService) Recompute(ctx context.Context) (sum RecomputeSummary, err error) {
	start := time.Now()
	defer func() { s.obs.observe("centroid.recompute", start, err) }()

	res, err := s.svc.RecomputeCentroids(ctx)
	if err != nil {
		return RecomputeSummary{}, fmt.Errorf("recompute centroids: %w", err)
	}
	return RecomputeSummary{Generation: res.Generation, Counts: res.Counts, Duration: res.Duration}, nil
}

// Reload restores the persisted generation, picking up a recompute done by another process.
func (s *ExemplarService) Reload(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("centroid.reload", start, err) }()

	if err = s.svc.Load(ctx); err != nil {
		return fmt.Errorf("reload centroids: %w", err)
	}
	return nil
}

// Generation returns the generation currently served, or nil before the first recompute.
func (s *ExemplarService) Generation() *Generation {
	g := s.svc.Centroids()
	if g == nil {
		return nil
	}
	out := &Generation{
		Number:     g.Number(),
		ComputedAt: g.ComputedAt(),
		Centroids:  make([]Centroid, 0, g.Len()),
	}
	for _, c := range g.Centroids() {
		out.Centroids = append(out.Centroids, Centroid{
			Domain:        c.Domain(),
			Vector:        c.Vector(),
			ExemplarCount: c.ExemplarCount(),
			UpdatedAt:     c.UpdatedAt(),
		})
	}
	return out
}
