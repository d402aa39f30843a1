package chi

import (
	"context"

	"go.uber.org/zap"

	domcen "github.com/kailas-cloud/intentgate/internal/domain/centroid"
	"github.com/kailas-cloud/intentgate/internal/domain/routing"
	domterm "github.com/kailas-cloud/intentgate/internal/domain/term"
	exemplaruc "github.com/kailas-cloud/intentgate/internal/usecase/exemplar"
	healthuc "github.com/kailas-cloud/intentgate/internal/usecase/health"
)

// --- Term service mock ---

type mockTerms struct {
	upsertFn    func(ctx context.Context, base, localized, lang string) (domterm.Term, error)
	normalizeFn func(ctx context.Context, raw, lang string) string
}

func (m *mockTerms) Upsert(ctx context.Context, base, localized, lang string) (domterm.Term, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, base, localized, lang)
	}
	return domterm.Reconstruct("t-1", base, localized, lang), nil
}

func (m *mockTerms) Normalize(ctx context.Context, raw, lang string) string {
	if m.normalizeFn != nil {
		return m.normalizeFn(ctx, raw, lang)
	}
	return raw
}

// --- Exemplar service mock ---

type mockExemplars struct {
	applyFn     func(ctx context.Context) error
	addFn       func(ctx context.Context, domainID, text string, emb []float32) (string, error)
	addTextFn   func(ctx context.Context, domainID, text string) (string, error)
	retireFn    func(ctx context.Context, id string) error
	recomputeFn func(ctx context.Context) (exemplaruc.Summary, error)
	generation  *domcen.Generation
}

func (m *mockExemplars) ApplySchema(ctx context.Context) error {
	if m.applyFn != nil {
		return m.applyFn(ctx)
	}
	return nil
}

func (m *mockExemplars) AddExemplar(ctx context.Context, domainID, text string, emb []float32) (string, error) {
	if m.addFn != nil {
		return m.addFn(ctx, domainID, text, emb)
	}
	return "ex-1", nil
}

func (m *mockExemplars) AddExemplarText(ctx context.Context, domainID, text string) (string, error) {
	if m.addTextFn != nil {
		return m.addTextFn(ctx, domainID, text)
	}
	return "ex-1", nil
}

func (m *mockExemplars) RetireExemplar(ctx context.Context, id string) error {
	if m.retireFn != nil {
		return m.retireFn(ctx, id)
	}
	return nil
}

func (m *mockExemplars) RecomputeCentroids(ctx context.Context) (exemplaruc.Summary, error) {
	if m.recomputeFn != nil {
		return m.recomputeFn(ctx)
	}
	return exemplaruc.Summary{}, nil
}

func (m *mockExemplars) Centroids() *domcen.Generation { return m.generation }

// --- Router mock ---

type mockRouter struct {
	routeFn     func(ctx context.Context, text string, emb []float32, lang string) (routing.Decision, error)
	routeTextFn func(ctx context.Context, text, lang string) (routing.Decision, error)
}

func (m *mockRouter) Route(ctx context.Context, text string, emb []float32, lang string) (routing.Decision, error) {
	if m.routeFn != nil {
		return m.routeFn(ctx, text, emb, lang)
	}
	return routing.Decision{MatchedVia: routing.MatchedNone}, nil
}

func (m *mockRouter) RouteText(ctx context.Context, text, lang string) (routing.Decision, error) {
	if m.routeTextFn != nil {
		return m.routeTextFn(ctx, text, lang)
	}
	return routing.Decision{MatchedVia: routing.MatchedNone}, nil
}

// --- Health mock ---

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

type testDeps struct {
	terms     *mockTerms
	exemplars *mockExemplars
	router    *mockRouter
	health    *mockHealth
}

func newTestDeps() *testDeps {
	return &testDeps{
		terms:     &mockTerms{},
		exemplars: &mockExemplars{},
		router:    &mockRouter{},
		health: &mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
		}},
	}
}

func (d *testDeps) server() *Server {
	return NewServer(d.terms, d.exemplars, d.router, d.health, zap.NewNop())
}
