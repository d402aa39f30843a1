package intentgate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/intentgate/internal/domain"
	domcen "github.com/kailas-cloud/intentgate/internal/domain/centroid"
	domterm "github.com/kailas-cloud/intentgate/internal/domain/term"
	exemplaruc "github.com/kailas-cloud/intentgate/internal/usecase/exemplar"
)

// --- TermService ---

func TestTermService_Upsert(t *testing.T) {
	mock := &mockTermUC{
		upsertFn: func(_ context.Context, base, localized, language string) (domterm.Term, error) {
			return domterm.Reconstruct("t-1", base, localized, language), nil
		},
	}

	svc := (&Client{termSvc: mock}).Terms()
	term, err := svc.Upsert(context.Background(), "Kyrenia", "Girne", "tr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Term{ID: "t-1", Base: "Kyrenia", Localized: "Girne", Language: "tr"}
	if term != want {
		t.Errorf("term = %+v, want %+v", term, want)
	}
}

func TestTermService_Upsert_Error(t *testing.T) {
	mock := &mockTermUC{
		upsertFn: func(context.Context, string, string, string) (domterm.Term, error) {
			return domterm.Term{}, domain.NewValidationError("base_term", "is required")
		},
	}

	_, err := (&TermService{svc: mock}).Upsert(context.Background(), "", "Girne", "tr")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestTermService_Get_NotFound(t *testing.T) {
	mock := &mockTermUC{
		getFn: func(context.Context, string, string) (domterm.Term, error) {
			return domterm.Term{}, domain.ErrNotFound
		},
	}

	_, err := (&TermService{svc: mock}).Get(context.Background(), "nowhere", "en")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTermService_Normalize(t *testing.T) {
	mock := &mockTermUC{
		normalizeFn: func(_ context.Context, raw, _ string) string {
			if raw == "Girne" {
				return "Kyrenia"
			}
			return raw
		},
	}

	svc := &TermService{svc: mock}
	if got := svc.Normalize(context.Background(), "Girne", "tr"); got != "Kyrenia" {
		t.Errorf("Normalize = %q, want Kyrenia", got)
	}
}

// --- ExemplarService ---

func TestExemplarService_Add(t *testing.T) {
	mock := &mockExemplarUC{
		addFn: func(_ context.Context, domainID, text string, emb []float32) (string, error) {
			if domainID != "vehicles" || text != "used car" || len(emb) != 2 {
				t.Errorf("unexpected args %q %q %v", domainID, text, emb)
			}
			return "ex-1", nil
		},
	}

	id, err := (&ExemplarService{svc: mock}).Add(context.Background(), "vehicles", "used car", []float32{1, 0})
	if err != nil || id != "ex-1" {
		t.Fatalf("Add = %q, %v", id, err)
	}
}

func TestExemplarService_Add_UnknownDomain(t *testing.T) {
	mock := &mockExemplarUC{
		addFn: func(context.Context, string, string, []float32) (string, error) {
			return "", domain.ErrUnknownDomain
		},
	}

	_, err := (&ExemplarService{svc: mock}).Add(context.Background(), "boats", "yacht", []float32{1})
	if !errors.Is(err, ErrUnknownDomain) {
		t.Fatalf("expected ErrUnknownDomain, got %v", err)
	}
}

func TestExemplarService_AddText(t *testing.T) {
	mock := &mockExemplarUC{
		addTextFn: func(_ context.Context, _, text string) (string, error) {
			return "ex-" + text, nil
		},
	}

	id, err := (&ExemplarService{svc: mock}).AddText(context.Background(), "vehicles", "car")
	if err != nil || id != "ex-car" {
		t.Fatalf("AddText = %q, %v", id, err)
	}
}

func TestExemplarService_AddTexts_PartialOnError(t *testing.T) {
	boom := errors.New("provider down")
	mock := &mockExemplarUC{
		addTextsFn: func(context.Context, string, []string) ([]string, error) {
			return []string{"ex-1"}, boom
		},
	}

	ids, err := (&ExemplarService{svc: mock}).AddTexts(context.Background(), "vehicles", []string{"a", "b"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("ids = %v, want the stored one", ids)
	}
}

func TestExemplarService_Retire(t *testing.T) {
	var retired string
	mock := &mockExemplarUC{
		retireFn: func(_ context.Context, id string) error {
			retired = id
			return nil
		},
	}

	if err := (&ExemplarService{svc: mock}).Retire(context.Background(), "ex-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retired != "ex-9" {
		t.Errorf("retired = %q", retired)
	}
}

func TestExemplarService_Recompute(t *testing.T) {
	mock := &mockExemplarUC{
		recomputeFn: func(context.Context) (exemplaruc.Summary, error) {
			return exemplaruc.Summary{
				Generation: 3,
				Counts:     map[string]int{"vehicles": 2},
				Duration:   time.Millisecond,
			}, nil
		},
	}

	sum, err := (&ExemplarService{svc: mock}).Recompute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Generation != 3 || sum.Counts["vehicles"] != 2 || sum.Duration != time.Millisecond {
		t.Errorf("summary = %+v", sum)
	}
}

func TestExemplarService_ApplySchemaAndReload(t *testing.T) {
	boom := errors.New("down")
	mock := &mockExemplarUC{
		applySchemaFn: func(context.Context) error { return nil },
		loadFn:        func(context.Context) error { return boom },
	}

	svc := &ExemplarService{svc: mock}
	if err := svc.ApplySchema(context.Background()); err != nil {
		t.Fatalf("ApplySchema: %v", err)
	}
	if err := svc.Reload(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Reload: expected boom, got %v", err)
	}
}

func TestExemplarService_Generation(t *testing.T) {
	gen := domcen.NewGeneration(7, []domcen.Centroid{
		domcen.New("real_estate", []float32{1, 0}, 2, 100),
		domcen.New("vehicles", []float32{0, 1}, 3, 100),
	}, 100)
	mock := &mockExemplarUC{centroidsFn: func() *domcen.Generation { return gen }}

	g := (&ExemplarService{svc: mock}).Generation()
	if g == nil || g.Number != 7 || len(g.Centroids) != 2 {
		t.Fatalf("generation = %+v", g)
	}
	if g.Centroids[1].Domain != "vehicles" || g.Centroids[1].ExemplarCount != 3 {
		t.Errorf("centroid = %+v", g.Centroids[1])
	}
}

func TestExemplarService_Generation_Empty(t *testing.T) {
	mock := &mockExemplarUC{centroidsFn: func() *domcen.Generation { return nil }}
	if g := (&ExemplarService{svc: mock}).Generation(); g != nil {
		t.Errorf("expected nil generation, got %+v", g)
	}
}
