package intentgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/intentgate/internal/db"
	dbValkey "github.com/kailas-cloud/intentgate/internal/db/valkey"
	"github.com/kailas-cloud/intentgate/internal/domain"
	domcen "github.com/kailas-cloud/intentgate/internal/domain/centroid"
	"github.com/kailas-cloud/intentgate/internal/domain/routing"
	domterm "github.com/kailas-cloud/intentgate/internal/domain/term"
	centroidrepo "github.com/kailas-cloud/intentgate/internal/repository/centroid"
	exemplarrepo "github.com/kailas-cloud/intentgate/internal/repository/exemplar"
	termrepo "github.com/kailas-cloud/intentgate/internal/repository/term"
	exemplaruc "github.com/kailas-cloud/intentgate/internal/usecase/exemplar"
	healthuc "github.com/kailas-cloud/intentgate/internal/usecase/health"
	registryuc "github.com/kailas-cloud/intentgate/internal/usecase/registry"
	routeruc "github.com/kailas-cloud/intentgate/internal/usecase/router"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces, replaced by mocks in tests.
type termUseCase interface {
	Upsert(ctx context.Context, baseTerm, localized, language string) (domterm.Term, error)
	Get(ctx context.Context, localized, language string) (domterm.Term, error)
	Normalize(ctx context.Context, raw, language string) string
}

type exemplarUseCase interface {
	ApplySchema(ctx context.Context) error
	AddExemplar(ctx context.Context, domainID, text string, embedding []float32) (string, error)
	AddExemplarText(ctx context.Context, domainID, text string) (string, error)
	AddExemplarTexts(ctx context.Context, domainID string, texts []string) ([]string, error)
	RetireExemplar(ctx context.Context, id string) error
	RecomputeCentroids(ctx context.Context) (exemplaruc.Summary, error)
	Load(ctx context.Context) error
	Centroids() *domcen.Generation
}

type routeUseCase interface {
	Route(ctx context.Context, rawText string, embedding []float32, language string) (routing.Decision, error)
	RouteText(ctx context.Context, text, language string) (routing.Decision, error)
}

// Client is the intentgate SDK entry point.
type Client struct {
	store     db.Store
	termSvc   termUseCase
	exSvc     exemplarUseCase
	routeSvc  routeUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client, connects to the database and loads the persisted centroid generation.
// The provided context is used for the initial readiness check and load.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("intentgate: database not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}
	c := wireClient(store, cfg, obs)

	if err := c.exSvc.Load(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("intentgate: load centroids: %w", err)
	}
	return c, nil
}

func (c *clientConfig) validate() error {
	if len(c.addrs) == 0 {
		return errors.New("intentgate: database address required (use WithValkey or WithRedis)")
	}
	if len(c.domains) == 0 {
		return errors.New("intentgate: at least one domain required (use WithDomains)")
	}
	if c.dimensions <= 0 {
		return errors.New("intentgate: embedding dimensions required (use WithDimensions)")
	}
	if c.acceptThreshold < 0 || c.acceptThreshold > 1 ||
		c.lexicalThreshold < 0 || c.lexicalThreshold > c.acceptThreshold {
		return fmt.Errorf("intentgate: thresholds must satisfy 0 <= lexical (%v) <= accept (%v) <= 1",
			c.lexicalThreshold, c.acceptThreshold)
	}
	switch c.searchMode {
	case SearchExact, SearchANN:
	default:
		return fmt.Errorf("intentgate: unknown search mode %q", c.searchMode)
	}
	return nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
		s, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.addrs,
			Username: cfg.username,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("intentgate: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("intentgate: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) *Client {
	exRepo := exemplarrepo.New(store, cfg.dimensions)
	cenRepo := centroidrepo.New(store, cfg.dimensions)
	if cfg.hnswM > 0 || cfg.hnswEFConstruct > 0 {
		exRepo = exRepo.WithHNSW(exemplarrepo.HNSWConfig{M: cfg.hnswM, EFConstruct: cfg.hnswEFConstruct})
		cenRepo = cenRepo.WithHNSW(centroidrepo.HNSWConfig{M: cfg.hnswM, EFConstruct: cfg.hnswEFConstruct})
	}

	// nil interface, not a typed nil, when no embedder is configured.
	var domEmb domain.Embedder
	if cfg.embedder != nil {
		domEmb = adaptEmbedder(cfg.embedder)
	}

	// Internal services log through zap; SDK callers get slog events from the observer.
	nop := zap.NewNop()
	termSvc := registryuc.New(termrepo.New(store), nop)
	exSvc := exemplaruc.New(exRepo, cenRepo, domEmb, exemplaruc.Config{
		Domains:    domain.NewDomainSet(cfg.domains...),
		Dimensions: cfg.dimensions,
		SearchMode: exemplaruc.SearchMode(cfg.searchMode),
	}, nop)
	routeSvc := routeruc.New(termSvc, exSvc, domEmb, routeruc.Config{
		AcceptThreshold:          cfg.acceptThreshold,
		LexicalFallbackThreshold: cfg.lexicalThreshold,
		Keywords:                 cfg.keywords,
		TopK:                     cfg.topK,
	}, nop)

	var embHealth healthuc.EmbeddingChecker
	if hc, ok := cfg.embedder.(domain.HealthChecker); ok {
		embHealth = hc
	}

	return &Client{
		store:     store,
		termSvc:   termSvc,
		exSvc:     exSvc,
		routeSvc:  routeSvc,
		healthSvc: healthuc.New(store, embHealth, exSvc),
		obs:       obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Terms returns the term registry service.
func (c *Client) Terms() *TermService {
	return &TermService{svc: c.termSvc, obs: c.obs}
}

// Exemplars returns the exemplar and centroid service.
func (c *Client) Exemplars() *ExemplarService {
	return &ExemplarService{svc: c.exSvc, obs: c.obs}
}

// Route classifies a turn with a caller-supplied embedding. rawText feeds the lexical overlay.
func (c *Client) Route(ctx context.Context, rawText string, embedding []float32, language string) (d Decision, err error) {
	start := time.Now()
	defer func() { c.obs.observe("route", start, err) }()

	rd, err := c.routeSvc.Route(ctx, rawText, embedding, language)
	if err != nil {
		return Decision{}, fmt.Errorf("route: %w", err)
	}
	d = decisionFromDomain(rd)
	c.obs.decision(d)
	return d, nil
}

// RouteText embeds text with the configured Embedder and routes it.
func (c *Client) RouteText(ctx context.Context, text, language string) (d Decision, err error) {
	start := time.Now()
	defer func() { c.obs.observe("route_text", start, err) }()

	rd, err := c.routeSvc.RouteText(ctx, text, language)
	if err != nil {
		return Decision{}, fmt.Errorf("route text: %w", err)
	}
	d = decisionFromDomain(rd)
	c.obs.decision(d)
	return d, nil
}

func decisionFromDomain(rd routing.Decision) Decision {
	d := Decision{
		QueryID:    rd.QueryID,
		Domain:     rd.Domain,
		Confidence: rd.Confidence,
		MatchedVia: MatchedVia(rd.MatchedVia),
		Timestamp:  rd.Timestamp,
	}
	if len(rd.Candidates) > 0 {
		d.Candidates = make([]Candidate, len(rd.Candidates))
		for i, c := range rd.Candidates {
			d.Candidates[i] = Candidate{Domain: c.Domain, Similarity: c.Similarity}
		}
	}
	return d
}

// adaptEmbedder keeps the BatchEmbed capability of e visible to the exemplar service.
func adaptEmbedder(e Embedder) domain.Embedder {
	a := &embedderAdapter{inner: e}
	if be, ok := e.(BatchEmbedder); ok {
		return &batchEmbedderAdapter{embedderAdapter: a, batch: be}
	}
	return a
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

type batchEmbedderAdapter struct {
	*embedderAdapter
	batch BatchEmbedder
}

func (a *batchEmbedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	r, err := a.batch.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
