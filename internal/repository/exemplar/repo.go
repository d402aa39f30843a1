package exemplar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/intentgate/internal/db"
	"github.com/kailas-cloud/intentgate/internal/domain"
	domex "github.com/kailas-cloud/intentgate/internal/domain/exemplar"
)

// store is the consumer interface for exemplars (ISP).
//
//nolint:interfacebloat // exemplar repo needs hash + index + search operations
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo stores exemplars as hashes with the embedding in a binary vector field.
type Repo struct {
	store store
	dim   int
	hnsw  HNSWConfig
}

// New creates an exemplar repository for embeddings of length dim.
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

// EnsureIndex creates the exemplar FT index. An existing index is success.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def, err := db.NewIndex(indexName()).
		Prefix(keyPrefix()).
		Tag("domain").
		Tag("retired").
		VectorHNSW("__vector", r.dim, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build exemplar index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create exemplar index: %w", err)
	}
	return nil
}

// Save stores an exemplar.
func (r *Repo) Save(ctx context.Context, ex domex.Exemplar) error {
	if err := r.store.HSet(ctx, exemplarKey(ex.ID()), exemplarToHash(ex)); err != nil {
		return fmt.Errorf("hset exemplar %s: %w", ex.ID(), err)
	}
	return nil
}

// Get retrieves an exemplar by id.
func (r *Repo) Get(ctx context.Context, id string) (domex.Exemplar, error) {
	m, err := r.store.HGetAll(ctx, exemplarKey(id))
	if err != nil {
		return domex.Exemplar{}, fmt.Errorf("hgetall exemplar %s: %w", id, err)
	}
	if len(m) == 0 {
		return domex.Exemplar{}, domain.ErrNotFound
	}
	return exemplarFromHash(m)
}

// Retire marks an exemplar as excluded from future recomputes.
func (r *Repo) Retire(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	if err := r.store.HSet(ctx, exemplarKey(id), map[string]string{"retired": "1"}); err != nil {
		return fmt.Errorf("retire exemplar %s: %w", id, err)
	}
	return nil
}

// ListActive returns all non-retired exemplars sorted by creation time.
func (r *Repo) ListActive(ctx context.Context) ([]domex.Exemplar, error) {
	keys, err := r.store.Scan(ctx, exemplarKey("*"))
	if err != nil {
		return nil, fmt.Errorf("scan exemplars: %w", err)
	}
	if len(keys) == 0 {
		return []domex.Exemplar{}, nil
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi exemplars: %w", err)
	}

	out := make([]domex.Exemplar, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		ex, err := exemplarFromHash(m)
		if err != nil {
			return nil, fmt.Errorf("parse exemplar %s: %w", keys[i], err)
		}
		if ex.Retired() {
			continue
		}
		out = append(out, ex)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt() < out[j].CreatedAt()
	})
	return out, nil
}

// Similar returns up to k active exemplars nearest to vector.
func (r *Repo) Similar(ctx context.Context, vector []float32, k int) ([]domex.Match, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName(),
		TagFilters:   map[string]string{"retired": "0"},
		Vector:       vector,
		K:            k,
		ReturnFields: []string{"id", "domain", "text"},
	})
	if err != nil {
		return nil, fmt.Errorf("search exemplars: %w", err)
	}

	out := make([]domex.Match, 0, len(res.Entries))
	for _, e := range res.Entries {
		out = append(out, domex.Match{
			ID:         e.Fields["id"],
			Domain:     e.Fields["domain"],
			Text:       e.Fields["text"],
			Similarity: e.Score,
		})
	}
	return out, nil
}

// Key patterns: intentgate:exemplar:{id}, index intentgate:exemplar:idx

func keyPrefix() string {
	return domain.KeyPrefix + "exemplar:"
}

func exemplarKey(id string) string {
	return keyPrefix() + id
}

func indexName() string {
	return domain.KeyPrefix + "exemplars:idx"
}

func exemplarToHash(ex domex.Exemplar) map[string]string {
	retired := "0"
	if ex.Retired() {
		retired = "1"
	}
	return map[string]string{
		"id":         ex.ID(),
		"domain":     ex.Domain(),
		"text":       ex.Text(),
		"created_at": strconv.FormatInt(ex.CreatedAt(), 10),
		"retired":    retired,
		"__vector":   db.EncodeVector(ex.Embedding()),
	}
}

func exemplarFromHash(m map[string]string) (domex.Exemplar, error) {
	createdAt, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return domex.Exemplar{}, fmt.Errorf("invalid created_at: %w", err)
	}
	vec, err := db.DecodeVector(m["__vector"])
	if err != nil {
		return domex.Exemplar{}, err
	}
	retired := strings.TrimSpace(m["retired"]) == "1"
	return domex.Reconstruct(m["id"], m["domain"], m["text"], vec, createdAt, retired), nil
}
