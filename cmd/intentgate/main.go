package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/intentgate/internal/auth"
	"github.com/kailas-cloud/intentgate/internal/config"
	"github.com/kailas-cloud/intentgate/internal/db"
	dbValkey "github.com/kailas-cloud/intentgate/internal/db/valkey"
	"github.com/kailas-cloud/intentgate/internal/domain"
	logpkg "github.com/kailas-cloud/intentgate/internal/logger"
	"github.com/kailas-cloud/intentgate/internal/metrics"
	centroidrepo "github.com/kailas-cloud/intentgate/internal/repository/centroid"
	"github.com/kailas-cloud/intentgate/internal/repository/embcache"
	exemplarrepo "github.com/kailas-cloud/intentgate/internal/repository/exemplar"
	termrepo "github.com/kailas-cloud/intentgate/internal/repository/term"
	"github.com/kailas-cloud/intentgate/internal/repository/termcache"
	chiTransport "github.com/kailas-cloud/intentgate/internal/transport/chi"
	"github.com/kailas-cloud/intentgate/internal/transport/handlerhttp"
	openaiEmb "github.com/kailas-cloud/intentgate/internal/transport/openai"
	"github.com/kailas-cloud/intentgate/internal/transport/ws"
	embeddinguc "github.com/kailas-cloud/intentgate/internal/usecase/embedding"
	exemplaruc "github.com/kailas-cloud/intentgate/internal/usecase/exemplar"
	gatewayuc "github.com/kailas-cloud/intentgate/internal/usecase/gateway"
	healthuc "github.com/kailas-cloud/intentgate/internal/usecase/health"
	registryuc "github.com/kailas-cloud/intentgate/internal/usecase/registry"
	routeruc "github.com/kailas-cloud/intentgate/internal/usecase/router"
	sessionuc "github.com/kailas-cloud/intentgate/internal/usecase/session"
	"github.com/kailas-cloud/intentgate/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting intentgate server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Strings("domains", cfg.Routing.DomainIDs()),
	)

	store, err := openStore(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRoutingMetrics()
	metrics.RegisterSessionMetrics()

	// Embedder chains: nil interfaces when no provider is configured.
	var base *openaiEmb.Embedder
	var queryEmbedder, exemplarEmbedder domain.Embedder
	if cfg.Embedding.Enabled() {
		base = newBaseEmbedder(cfg.Embedding, logger)
		queryEmbedder = buildEmbedder(base, cfg.Embedding, cfg.Embedding.QueryPrefix, store, logger)
		exemplarEmbedder = buildEmbedder(base, cfg.Embedding, cfg.Embedding.ExemplarPrefix, store, logger)
		logger.Info("Embedders created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
		)
	} else {
		logger.Warn("No embedding provider configured, clients must send embeddings")
	}

	// Repositories
	dim := cfg.Embedding.Dimensions
	hnsw := cfg.Index
	exRepo := exemplarrepo.New(store, dim).WithHNSW(exemplarrepo.HNSWConfig{
		M:           hnsw.HNSWM,
		EFConstruct: hnsw.HNSWEFConstruct,
	})
	cenRepo := centroidrepo.New(store, dim).WithHNSW(centroidrepo.HNSWConfig{
		M:           hnsw.HNSWM,
		EFConstruct: hnsw.HNSWEFConstruct,
	})
	var terms registryuc.Repository = termrepo.New(store)
	if cfg.Registry.CacheSize > 0 {
		terms = termcache.New(
			termrepo.New(store),
			cfg.Registry.CacheSize,
			time.Duration(cfg.Registry.CacheTTLSec)*time.Second,
			metrics.TermCacheTotal,
		)
	}

	// Use case services
	registrySvc := registryuc.New(terms, logger)
	exemplarSvc := exemplaruc.New(exRepo, cenRepo, exemplarEmbedder, exemplaruc.Config{
		Domains:    domain.NewDomainSet(cfg.Routing.DomainIDs()...),
		Dimensions: dim,
		SearchMode: exemplaruc.SearchMode(cfg.Index.SearchMode),
	}, logger)
	routerSvc := routeruc.New(registrySvc, exemplarSvc, queryEmbedder, routeruc.Config{
		AcceptThreshold:          cfg.Routing.AcceptThreshold,
		LexicalFallbackThreshold: cfg.Routing.LexicalFallbackThreshold,
		Keywords:                 cfg.Routing.Keywords(),
		TieBreak:                 routeruc.TieBreak(cfg.Routing.TieBreak),
		TopK:                     cfg.Routing.TopK,
	}, logger)

	if err := exemplarSvc.ApplySchema(ctx); err != nil {
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}
	if err := exemplarSvc.Load(ctx); err != nil {
		logger.Error("Failed to load centroid generation, routing to none until recompute", zap.Error(err))
	}

	// Health: pass nil interface (not typed nil pointer) when no provider is configured.
	var embHealth healthuc.EmbeddingChecker
	if base != nil {
		embHealth = base
	}
	healthSvc := healthuc.New(store, embHealth, exemplarSvc)

	// Sessions and gateway
	verifier, err := newVerifier(cfg.Auth.JWT)
	if err != nil {
		logger.Fatal("Failed to create token verifier", zap.Error(err))
	}
	sessions := sessionuc.NewManager(verifier, sessionuc.Config{
		QueueDepth:          cfg.Session.QueueDepth,
		IdleTimeout:         time.Duration(cfg.Session.IdleTimeoutSec) * time.Second,
		SweepInterval:       time.Duration(cfg.Session.SweepIntervalSec) * time.Second,
		RestrictedResources: cfg.Auth.RestrictedResources,
	}, metrics.SessionObserver{}, logger)

	handlers := buildHandlers(cfg.Routing.Domains, time.Duration(cfg.Session.HandlerTimeoutSec)*time.Second, logger)
	gw := gatewayuc.New(routerSvc, sessions, handlers, gatewayuc.Config{
		InboundRate:    cfg.Session.InboundRatePerSec,
		InboundBurst:   cfg.Session.InboundBurst,
		HandlerTimeout: time.Duration(cfg.Session.HandlerTimeoutSec) * time.Second,
		Clarification:  cfg.Routing.Clarification,
	}, logger)
	wsHandler := ws.NewHandler(sessions, gw, ws.Config{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		WriteTimeout:   time.Duration(cfg.Session.WriteTimeoutSec) * time.Second,
		PongTimeout:    time.Duration(cfg.Session.PongTimeoutSec) * time.Second,
	}, logger)

	// HTTP edge
	server := chiTransport.NewServer(registrySvc, exemplarSvc, routerSvc, healthSvc, logger)
	handler := chiTransport.NewRouter(server, wsHandler, chiTransport.RouterConfig{
		APIKeys:         cfg.Auth.APIKeys,
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
		RateLimitPerSec: cfg.HTTP.RateLimitPerSec,
		RateLimitBurst:  cfg.HTTP.RateLimitBurst,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		// WriteTimeout stays unset: it would cut long-lived websocket connections.
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
	}

	sessionsDone := make(chan struct{})
	go func() {
		defer close(sessionsDone)
		sessions.Run(ctx)
	}()

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	// Shutdown does not wait for hijacked connections; Run closes them with a going-away frame.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	select {
	case <-sessionsDone:
	case <-shutdownCtx.Done():
		logger.Warn("Sessions did not close before shutdown timeout")
	}

	logger.Info("Server stopped gracefully")
}

// openStore connects to the configured database. Both drivers speak the same protocol
// and share the rueidis-backed store.
func openStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case "valkey", "redis":
		store, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// newVerifier returns nil (every connection anonymous) when JWT is not configured.
func newVerifier(cfg config.JWTConfig) (sessionuc.TokenVerifier, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	v, err := auth.NewValidator(auth.Config{
		SigningMethod: cfg.SigningMethod,
		PublicKey:     cfg.PublicKey,
		SecretKey:     cfg.Secret,
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		Leeway:        time.Duration(cfg.LeewaySec) * time.Second,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("jwt validator: %w", err)
	}
	return v, nil
}

// buildHandlers registers an HTTP adapter for every domain with a handler URL.
// Domains without one route normally and reply with handler_unavailable.
func buildHandlers(domains []config.DomainConfig, defaultTimeout time.Duration, logger *zap.Logger) *gatewayuc.Registry {
	reg := gatewayuc.NewRegistry()
	client := &http.Client{}
	for _, d := range domains {
		if d.HandlerURL == "" {
			logger.Warn("Domain has no handler", zap.String("domain", d.ID))
			continue
		}
		hc := handlerhttp.DefaultConfig(d.ID, d.HandlerURL)
		hc.Timeout = defaultTimeout
		if d.HandlerTimeoutSec > 0 {
			hc.Timeout = time.Duration(d.HandlerTimeoutSec) * time.Second
		}
		reg.Register(d.ID, handlerhttp.New(hc, client, logger))
	}
	return reg
}

func newBaseEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) *openaiEmb.Embedder {
	return openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Logger:     logger,
	})
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Prefix
func buildEmbedder(
	base *openaiEmb.Embedder,
	cfg config.EmbeddingConfig,
	prefix string,
	store db.Store,
	logger *zap.Logger,
) domain.Embedder {
	var embedder domain.Embedder = base
	if cfg.CacheTTLSec > 0 {
		embedder = embcache.New(
			base, store, cfg.Model,
			time.Duration(cfg.CacheTTLSec)*time.Second,
			metrics.EmbeddingCacheTotal, logger,
		)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Provider, cfg.Model, cfg.Dimensions, logger,
	)

	// Prefix outermost: the cache key includes it.
	return domain.NewPrefixEmbedder(embedder, prefix)
}
