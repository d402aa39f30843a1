package intentgate

import (
	"context"

	domcen "github.com/kailas-cloud/intentgate/internal/domain/centroid"
	"github.com/kailas-cloud/intentgate/internal/domain/routing"
	domterm "github.com/kailas-cloud/intentgate/internal/domain/term"
	exemplaruc "github.com/kailas-cloud/intentgate/internal/usecase/exemplar"
	healthuc "github.com/kailas-cloud/intentgate/internal/usecase/health"
)

// --- termUseCase mock ---

type mockTermUC struct {
	upsertFn    func(ctx context.Context, base, localized, language string) (domterm.Term, error)
	getFn       func(ctx context.Context, localized, language string) (domterm.Term, error)
	normalizeFn func(ctx context.Context, raw, language string) string
}

func (m *mockTermUC) Upsert(ctx context.Context, base, localized, language string) (domterm.Term, error) {
	return m.upsertFn(ctx, base, localized, language)
}

func (m *mockTermUC) Get(ctx context.Context, localized, language string) (domterm.Term, error) {
	return m.getFn(ctx, localized, language)
}

func (m *mockTermUC) Normalize(ctx context.Context, raw, language string) string {
	return m.normalizeFn(ctx, raw, language)
}

// --- exemplarUseCase mock ---

type mockExemplarUC struct {
	applySchemaFn func(ctx context.Context) error
	addFn         func(ctx context.Context, domainID, text string, embedding []float32) (string, error)
	addTextFn     func(ctx context.Context, domainID, text string) (string, error)
	addTextsFn    func(ctx context.Context, domainID string, texts []string) ([]string, error)
	retireFn      func(ctx context.Context, id string) error
	recomputeFn   func(ctx context.Context) (exemplaruc.Summary, error)
	loadFn        func(ctx context.Context) error
	centroidsFn   func() *domcen.Generation
}

func (m *mockExemplarUC) ApplySchema(ctx context.Context) error { return m.applySchemaFn(ctx) }

func (m *mockExemplarUC) AddExemplar(ctx context.Context, domainID, text string, embedding []float32) (string, error) {
	return m.addFn(ctx, domainID, text, embedding)
}

func (m *mockExemplarUC) AddExemplarText(ctx context.Context, domainID, text string) (string, error) {
	return m.addTextFn(ctx, domainID, text)
}

func (m *mockExemplarUC) AddExemplarTexts(ctx context.Context, domainID string, texts []string) ([]string, error) {
	return m.addTextsFn(ctx, domainID, texts)
}

func (m *mockExemplarUC) RetireExemplar(ctx context.Context, id string) error { return m.retireFn(ctx, id) }

func (m *mockExemplarUC) RecomputeCentroids(ctx context.Context) (exemplaruc.Summary, error) {
	return m.recomputeFn(ctx)
}

func (m *mockExemplarUC) Load(ctx context.Context) error { return m.loadFn(ctx) }

func (m *mockExemplarUC) Centroids() *domcen.Generation { return m.centroidsFn() }

// --- routeUseCase mock ---

type mockRouteUC struct {
	routeFn     func(ctx context.Context, rawText string, embedding []float32, language string) (routing.Decision, error)
	routeTextFn func(ctx context.Context, text, language string) (routing.Decision, error)
}

func (m *mockRouteUC) Route(
	ctx context.Context, rawText string, embedding []float32, language string,
) (routing.Decision, error) {
	return m.routeFn(ctx, rawText, embedding, language)
}

func (m *mockRouteUC) RouteText(ctx context.Context, text, language string) (routing.Decision, error) {
	return m.routeTextFn(ctx, text, language)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- embedders ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type mockBatchEmbedder struct {
	mockEmbedder
	batchFn func(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

func (m *mockBatchEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	return m.batchFn(ctx, texts)
}

// --- helpers ---

func testClient(terms termUseCase, ex exemplarUseCase, route routeUseCase) *Client {
	return &Client{
		termSvc:  terms,
		exSvc:    ex,
		routeSvc: route,
	}
}
