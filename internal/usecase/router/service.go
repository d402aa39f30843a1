package router

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/intentgate/internal/domain"
	"github.com/kailas-cloud/intentgate/internal/domain/fold"
	"github.com/kailas-cloud/intentgate/internal/domain/routing"
	"github.com/kailas-cloud/intentgate/internal/domain/vector"
	"github.com/kailas-cloud/intentgate/internal/logger"
	"github.com/kailas-cloud/intentgate/internal/metrics"
)

// TieBreak selects what happens when keywords of several domains match.
type TieBreak string

const (
	// TieBreakVectorTop prefers the matching domain with the highest vector similarity among the top candidates.
	TieBreakVectorTop TieBreak = "vector_top"
	// TieBreakNone treats any multi-domain keyword match as ambiguous.
	TieBreakNone TieBreak = "none"
)

// DefaultTopK is the number of centroid candidates considered per query.
const DefaultTopK = 3

// Config holds routing thresholds and lexical keyword sets.
type Config struct {
	AcceptThreshold          float64
	LexicalFallbackThreshold float64
	// Keywords maps domain id to its keyword list. Keywords are folded on load.
	Keywords map[string][]string
	TieBreak TieBreak
	TopK     int
}

// Service routes a conversational turn to a domain.
type Service struct {
	registry  TermNormalizer
	centroids CentroidIndex
	embedder  domain.Embedder
	cfg       Config
	keywords  map[string][]string // folded keyword -> sorted domain ids
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a router. embedder can be nil when callers always supply embeddings.
func New(
	registry TermNormalizer,
	centroids CentroidIndex,
	embedder domain.Embedder,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.TieBreak == "" {
		cfg.TieBreak = TieBreakVectorTop
	}
	return &Service{
		registry:  registry,
		centroids: centroids,
		embedder:  embedder,
		cfg:       cfg,
		keywords:  indexKeywords(cfg.Keywords),
		logger:    logger,
		now:       time.Now,
	}
}

// RouteText embeds text and routes it.
func (s *Service) RouteText(ctx context.Context, text, language string) (routing.Decision, error) {
	if s.embedder == nil {
		return routing.Decision{}, errors.New("route text: embedder is not configured")
	}
	res, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return routing.Decision{}, fmt.Errorf("route text: %w", err)
	}
	return s.Route(ctx, text, res.Embedding, language)
}

// Route classifies one turn. The embedding is used as given; rawText only feeds the lexical overlay.
// A dimension mismatch is returned as an error. Missing centroids yield a none decision.
func (s *Service) Route(ctx context.Context, rawText string, embedding []float32, language string) (routing.Decision, error) {
	start := s.now()
	log := logger.FromContextOr(ctx, s.logger)

	tokens, err := s.registry.NormalizeTokens(ctx, rawText, language)
	if err != nil {
		metrics.RegistryDegradedTotal.Inc()
		log.Warn("Term registry unavailable, routing vector-only", zap.Error(err))
		tokens = nil
	}

	candidates, err := s.centroids.NearestCentroids(ctx, embedding, s.cfg.TopK)
	switch {
	case errors.Is(err, domain.ErrNoActiveCentroids):
		log.Warn("No active centroids, routing to none")
		candidates = nil
	case err != nil:
		return routing.Decision{}, err
	}

	d := s.decide(tokens, candidates)
	d.QueryID = uuid.NewString()
	d.Timestamp = s.now().UTC()
	d.Candidates = candidates

	metrics.RoutingDecisionsTotal.WithLabelValues(string(d.MatchedVia)).Inc()
	metrics.RoutingDuration.Observe(time.Since(start).Seconds())

	log.Debug("Routed turn",
		zap.String("query_id", d.QueryID),
		zap.String("domain", d.Domain),
		zap.Float64("confidence", d.Confidence),
		zap.String("matched_via", string(d.MatchedVia)),
	)
	return d, nil
}

func (s *Service) decide(tokens []string, candidates []routing.Candidate) routing.Decision {
	if len(candidates) == 0 {
		return routing.Decision{Domain: routing.DomainNone, MatchedVia: routing.MatchedNone}
	}

	top := candidates[0]
	confidence := vector.Clamp01(top.Similarity)

	if top.Similarity >= s.cfg.AcceptThreshold {
		return routing.Decision{Domain: top.Domain, Confidence: confidence, MatchedVia: routing.MatchedVector}
	}

	if top.Similarity >= s.cfg.LexicalFallbackThreshold {
		if domainID, ok := s.lexical(tokens, candidates); ok {
			return routing.Decision{Domain: domainID, Confidence: confidence, MatchedVia: routing.MatchedLexical}
		}
	}

	return routing.Decision{Domain: routing.DomainNone, Confidence: confidence, MatchedVia: routing.MatchedNone}
}

// lexical resolves the keyword overlay. Ambiguous matches report false.
func (s *Service) lexical(tokens []string, candidates []routing.Candidate) (string, bool) {
	matched := s.matchKeywords(tokens)
	switch {
	case len(matched) == 0:
		return "", false
	case len(matched) == 1:
		return matched[0], true
	case s.cfg.TieBreak == TieBreakNone:
		return "", false
	}

	// candidates are sorted by similarity, so the first member found wins.
	for _, c := range candidates {
		if slices.Contains(matched, c.Domain) {
			return c.Domain, true
		}
	}
	return "", false
}

// matchKeywords returns the sorted ids of domains with at least one keyword among tokens.
func (s *Service) matchKeywords(tokens []string) []string {
	var matched []string
	for _, tok := range tokens {
		for _, domainID := range s.keywords[tok] {
			if !slices.Contains(matched, domainID) {
				matched = append(matched, domainID)
			}
		}
	}
	slices.Sort(matched)
	return matched
}

func indexKeywords(byDomain map[string][]string) map[string][]string {
	idx := make(map[string][]string)
	for domainID, words := range byDomain {
		for _, w := range words {
			key := fold.Fold(fold.Clean(w))
			if key == "" || slices.Contains(idx[key], domainID) {
				continue
			}
			idx[key] = append(idx[key], domainID)
		}
	}
	for key := range idx {
		slices.Sort(idx[key])
	}
	return idx
}
