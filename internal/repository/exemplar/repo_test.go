package exemplar

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/intentgate/internal/db"
	"github.com/kailas-cloud/intentgate/internal/domain"
	domex "github.com/kailas-cloud/intentgate/internal/domain/exemplar"
)

func TestEnsureIndex(t *testing.T) {
	repo, ms := newTestRepo(t)
	var got *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		got = def
		return nil
	}

	if err := repo.WithHNSW(HNSWConfig{M: 8}).EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "intentgate:exemplars:idx" || got.Prefixes[0] != "intentgate:exemplar:" {
		t.Errorf("unexpected index: %s %v", got.Name, got.Prefixes)
	}
	v := got.Fields[2]
	if v.VectorDim != testDim || v.VectorM != 8 || v.VectorEFConstruct != 200 {
		t.Errorf("unexpected vector field: %+v", v)
	}
}

func TestEnsureIndex_AlreadyExists(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error { return db.ErrIndexExists }
	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("existing index should be success, got %v", err)
	}
}

func TestSave_Hash(t *testing.T) {
	repo, ms := newTestRepo(t)
	var key string
	var fields map[string]string
	ms.hsetFn = func(_ context.Context, k string, f map[string]string) error {
		key, fields = k, f
		return nil
	}

	ex := domex.Reconstruct("ex-1", "vehicles", "rent a car", []float32{1, 0, 0}, 1700000000000, false)
	if err := repo.Save(context.Background(), ex); err != nil {
		t.Fatal(err)
	}
	if key != "intentgate:exemplar:ex-1" {
		t.Errorf("key = %s", key)
	}
	if fields["retired"] != "0" || fields["domain"] != "vehicles" || len(fields["__vector"]) != 12 {
		t.Errorf("unexpected fields: %v", fields)
	}
}

func TestGet_RoundTrip(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return hashFor("ex-1", "vehicles", "42", "1", []float32{0, 1, 0}), nil
	}

	ex, err := repo.Get(context.Background(), "ex-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ex.Retired() || ex.CreatedAt() != 42 || ex.Embedding()[1] != 1 {
		t.Errorf("unexpected exemplar: %+v", ex)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRetire(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return hashFor("ex-1", "vehicles", "42", "0", []float32{0, 1, 0}), nil
	}
	var fields map[string]string
	ms.hsetFn = func(_ context.Context, _ string, f map[string]string) error {
		fields = f
		return nil
	}

	if err := repo.Retire(context.Background(), "ex-1"); err != nil {
		t.Fatal(err)
	}
	if fields["retired"] != "1" || len(fields) != 1 {
		t.Errorf("unexpected update: %v", fields)
	}
}

func TestRetire_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	if err := repo.Retire(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListActive_FiltersAndSorts(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.scanFn = func(_ context.Context, pattern string) ([]string, error) {
		if pattern != "intentgate:exemplar:*" {
			t.Errorf("pattern = %s", pattern)
		}
		return []string{"a", "b", "c", "d"}, nil
	}
	ms.hgetAllMultiFn = func(_ context.Context, _ []string) ([]map[string]string, error) {
		return []map[string]string{
			hashFor("late", "vehicles", "300", "0", []float32{1, 0, 0}),
			hashFor("gone", "vehicles", "100", "1", []float32{1, 0, 0}),
			{},
			hashFor("early", "services", "200", "0", []float32{0, 0, 1}),
		}, nil
	}

	list, err := repo.ListActive(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID() != "early" || list[1].ID() != "late" {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestListActive_Empty(t *testing.T) {
	repo, _ := newTestRepo(t)
	list, err := repo.ListActive(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("expected empty non-nil list, got %v", list)
	}
}

func TestSimilar(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.TagFilters["retired"] != "0" || q.K != 2 {
			t.Errorf("unexpected query: %+v", q)
		}
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{{
			Key:    "intentgate:exemplar:ex-1",
			Score:  0.8,
			Fields: map[string]string{"id": "ex-1", "domain": "vehicles", "text": "rent a car"},
		}}}, nil
	}

	matches, err := repo.Similar(context.Background(), []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Domain != "vehicles" || matches[0].Similarity != 0.8 {
		t.Errorf("unexpected matches: %+v", matches)
	}
}
