package centroid

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/intentgate/internal/db"
	"github.com/kailas-cloud/intentgate/internal/domain"
	domcen "github.com/kailas-cloud/intentgate/internal/domain/centroid"
	"github.com/kailas-cloud/intentgate/internal/domain/routing"
)

// store is the consumer interface for centroid generations (ISP).
//
//nolint:interfacebloat // generations need hash, counter, index and search operations
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Incr(ctx context.Context, key string) (int64, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo persists centroid generations. Each generation lives under its own key prefix,
// so writing generation N+1 never touches the keys readers of generation N use.
type Repo struct {
	store store
	dim   int
	hnsw  HNSWConfig
}

// New creates a centroid repository for vectors of length dim.
func New(s store, dim int) *Repo {
	return &Repo{store: s, dim: dim, hnsw: HNSWConfig{M: 16, EFConstruct: 200}}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// EnsureIndex creates the centroid FT index. An existing index is success.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def, err := db.NewIndex(indexName()).
		Prefix(generationsPrefix()).
		Tag("domain").
		Tag("generation").
		Numeric("exemplar_count").
		VectorHNSW("__vector", r.dim, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build centroid index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create centroid index: %w", err)
	}
	return nil
}

// NextGeneration allocates a new, never reused generation number.
func (r *Repo) NextGeneration(ctx context.Context) (int64, error) {
	n, err := r.store.Incr(ctx, seqKey())
	if err != nil {
		return 0, fmt.Errorf("incr generation: %w", err)
	}
	return n, nil
}

// SaveGeneration writes every centroid of g in one pipelined round-trip.
func (r *Repo) SaveGeneration(ctx context.Context, g *domcen.Generation) error {
	items := make([]db.HashSetItem, 0, g.Len())
	for _, c := range g.Centroids() {
		items = append(items, db.HashSetItem{
			Key:    centroidKey(g.Number(), c.Domain()),
			Fields: centroidToHash(g.Number(), c),
		})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("save generation %d: %w", g.Number(), err)
	}
	return nil
}

// SetCurrent records n as the generation to serve after restart.
func (r *Repo) SetCurrent(ctx context.Context, n int64) error {
	if err := r.store.Set(ctx, currentKey(), []byte(strconv.FormatInt(n, 10))); err != nil {
		return fmt.Errorf("set current generation: %w", err)
	}
	return nil
}

// Current returns the persisted current generation number, or domain.ErrNotFound.
func (r *Repo) Current(ctx context.Context) (int64, error) {
	data, err := r.store.Get(ctx, currentKey())
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("get current generation: %w", err)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse current generation %q: %w", data, err)
	}
	return n, nil
}

// LoadGeneration reads every centroid of generation n. An empty generation is domain.ErrNotFound.
func (r *Repo) LoadGeneration(ctx context.Context, n int64) (*domcen.Generation, error) {
	keys, err := r.store.Scan(ctx, generationPattern(n))
	if err != nil {
		return nil, fmt.Errorf("scan generation %d: %w", n, err)
	}
	if len(keys) == 0 {
		return nil, domain.ErrNotFound
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi generation %d: %w", n, err)
	}

	centroids := make([]domcen.Centroid, 0, len(results))
	var computedAt int64
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		c, err := centroidFromHash(m)
		if err != nil {
			return nil, fmt.Errorf("parse centroid %s: %w", keys[i], err)
		}
		computedAt = max(computedAt, c.UpdatedAt())
		centroids = append(centroids, c)
	}
	return domcen.NewGeneration(n, centroids, computedAt), nil
}

// DeleteGeneration removes every centroid key of generation n.
func (r *Repo) DeleteGeneration(ctx context.Context, n int64) error {
	keys, err := r.store.Scan(ctx, generationPattern(n))
	if err != nil {
		return fmt.Errorf("scan generation %d: %w", n, err)
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete generation %d: %w", n, err)
	}
	return nil
}

// Search runs an approximate KNN over generation n's centroids.
// Results are sorted by similarity, ties by domain id.
func (r *Repo) Search(ctx context.Context, n int64, vector []float32, k int) ([]routing.Candidate, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName(),
		TagFilters:   map[string]string{"generation": strconv.FormatInt(n, 10)},
		Vector:       vector,
		K:            k,
		ReturnFields: []string{"domain"},
	})
	if err != nil {
		return nil, fmt.Errorf("search centroids: %w", err)
	}

	out := make([]routing.Candidate, 0, len(res.Entries))
	for _, e := range res.Entries {
		out = append(out, routing.Candidate{Domain: e.Fields["domain"], Similarity: e.Score})
	}
	return routing.TopK(out, k), nil
}

// Key patterns: intentgate:centroid:g:{gen}:{domain}, intentgate:centroid:current,
// intentgate:centroid:seq, index intentgate:centroids:idx

func generationsPrefix() string {
	return domain.KeyPrefix + "centroid:g:"
}

func centroidKey(n int64, domainID string) string {
	return fmt.Sprintf("%s%d:%s", generationsPrefix(), n, domainID)
}

func generationPattern(n int64) string {
	return fmt.Sprintf("%s%d:*", generationsPrefix(), n)
}

func currentKey() string {
	return domain.KeyPrefix + "centroid:current"
}

func seqKey() string {
	return domain.KeyPrefix + "centroid:seq"
}

func indexName() string {
	return domain.KeyPrefix + "centroids:idx"
}

func centroidToHash(n int64, c domcen.Centroid) map[string]string {
	return map[string]string{
		"domain":         c.Domain(),
		"generation":     strconv.FormatInt(n, 10),
		"exemplar_count": strconv.Itoa(c.ExemplarCount()),
		"updated_at":     strconv.FormatInt(c.UpdatedAt(), 10),
		"__vector":       db.EncodeVector(c.Vector()),
	}
}

func centroidFromHash(m map[string]string) (domcen.Centroid, error) {
	count, err := strconv.Atoi(m["exemplar_count"])
	if err != nil {
		return domcen.Centroid{}, fmt.Errorf("invalid exemplar_count: %w", err)
	}
	updatedAt, err := strconv.ParseInt(m["updated_at"], 10, 64)
	if err != nil {
		return domcen.Centroid{}, fmt.Errorf("invalid updated_at: %w", err)
	}
	vec, err := db.DecodeVector(m["__vector"])
	if err != nil {
		return domcen.Centroid{}, err
	}
	return domcen.New(m["domain"], vec, count, updatedAt), nil
}
