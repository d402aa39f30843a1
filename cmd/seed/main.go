// Command seed loads vocabulary and exemplars into the store and recomputes centroids.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/intentgate/internal/config"
	dbValkey "github.com/kailas-cloud/intentgate/internal/db/valkey"
	"github.com/kailas-cloud/intentgate/internal/domain"
	logpkg "github.com/kailas-cloud/intentgate/internal/logger"
	centroidrepo "github.com/kailas-cloud/intentgate/internal/repository/centroid"
	exemplarrepo "github.com/kailas-cloud/intentgate/internal/repository/exemplar"
	termrepo "github.com/kailas-cloud/intentgate/internal/repository/term"
	openaiEmb "github.com/kailas-cloud/intentgate/internal/transport/openai"
	exemplaruc "github.com/kailas-cloud/intentgate/internal/usecase/exemplar"
	registryuc "github.com/kailas-cloud/intentgate/internal/usecase/registry"
)

func main() {
	var (
		file       = flag.String("file", "config/seed.yaml", "seed file with terms and exemplars")
		schemaOnly = flag.Bool("schema-only", false, "only create indexes")
		recompute  = flag.Bool("recompute", true, "recompute centroids after seeding")
	)
	flag.Parse()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *file, *schemaOnly, *recompute, logger); err != nil {
		logger.Error("Seed failed", zap.Error(err))
		_ = logger.Sync()
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, file string, schemaOnly, recompute bool, logger *zap.Logger) error {
	store, err := dbValkey.NewStore(dbValkey.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}

	var embedder domain.Embedder
	if cfg.Embedding.Enabled() {
		embedder = domain.NewPrefixEmbedder(openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		}), cfg.Embedding.ExemplarPrefix)
	}

	dim := cfg.Embedding.Dimensions
	exemplars := exemplaruc.New(
		exemplarrepo.New(store, dim).WithHNSW(exemplarrepo.HNSWConfig{M: cfg.Index.HNSWM, EFConstruct: cfg.Index.HNSWEFConstruct}),
		centroidrepo.New(store, dim).WithHNSW(centroidrepo.HNSWConfig{M: cfg.Index.HNSWM, EFConstruct: cfg.Index.HNSWEFConstruct}),
		embedder,
		exemplaruc.Config{
			Domains:    domain.NewDomainSet(cfg.Routing.DomainIDs()...),
			Dimensions: dim,
			SearchMode: exemplaruc.SearchMode(cfg.Index.SearchMode),
		},
		logger,
	)

	if err := exemplars.ApplySchema(ctx); err != nil {
		return err
	}
	logger.Info("Schema applied")
	if schemaOnly {
		return nil
	}

	f, err := ReadFile(file)
	if err != nil {
		return err
	}
	st, err := Apply(ctx, f, registryWriter{registryuc.New(termrepo.New(store), logger)}, exemplars)
	logger.Info("Seed written", zap.Int("terms", st.Terms), zap.Int("exemplars", st.Exemplars))
	if err != nil {
		return err
	}

	if !recompute {
		return nil
	}
	sum, err := exemplars.RecomputeCentroids(ctx)
	if err != nil {
		return fmt.Errorf("recompute: %w", err)
	}
	logger.Info("Centroids recomputed",
		zap.Int64("generation", sum.Generation),
		zap.Any("counts", sum.Counts),
		zap.Duration("duration", sum.Duration),
	)
	return nil
}

type registryWriter struct {
	svc *registryuc.Service
}

func (w registryWriter) Upsert(ctx context.Context, baseTerm, localized, language string) error {
	_, err := w.svc.Upsert(ctx, baseTerm, localized, language)
	return err
}
