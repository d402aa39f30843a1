package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kailas-cloud/intentgate/internal/domain"
	"github.com/kailas-cloud/intentgate/internal/domain/routing"
	"github.com/kailas-cloud/intentgate/internal/logger"
	healthuc "github.com/kailas-cloud/intentgate/internal/usecase/health"
)

const maxBodyBytes = 1 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the admin and dry-run HTTP API.
type Server struct {
	terms         TermService
	exemplars     ExemplarService
	router        RouteService
	health        HealthService
	validate      *validator.Validate
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	terms TermService,
	exemplars ExemplarService,
	router RouteService,
	health HealthService,
	logger *zap.Logger,
) *Server {
	s := &Server{
		terms:     terms,
		exemplars: exemplars,
		router:    router,
		health:    health,
		validate:  newValidator(),
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrUnknownDomain, http.StatusBadRequest, CodeUnknownDomain),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusBadRequest, CodeDimensionMismatch),
		sentinelHandler(domain.ErrNoActiveCentroids, http.StatusConflict, CodeNoActiveCentroids),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrUnauthenticated, http.StatusUnauthorized, CodeUnauthorized),
		sentinelHandler(domain.ErrRegistryUnavailable,
			http.StatusServiceUnavailable, CodeRegistryUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, CodeEmbeddingProvider),
	}
	return s
}

// UpsertTerm handles PUT /v1/terms.
func (s *Server) UpsertTerm(w http.ResponseWriter, r *http.Request) {
	var req UpsertTermRequest
	if !s.decode(w, r, &req) {
		return
	}

	t, err := s.terms.Upsert(r.Context(), req.BaseTerm, req.LocalizedTerm, req.Language)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, TermResponse{
		ID:            t.ID(),
		BaseTerm:      t.BaseTerm(),
		LocalizedTerm: t.LocalizedTerm(),
		Language:      t.Language(),
	})
}

// NormalizeTerm handles GET /v1/terms/normalize?q=&lang=.
func (s *Server) NormalizeTerm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query parameter q is required")
		return
	}
	lang := r.URL.Query().Get("lang")

	writeJSON(w, http.StatusOK, NormalizeResponse{
		Input:      q,
		Language:   lang,
		Normalized: s.terms.Normalize(r.Context(), q, lang),
	})
}

// AddExemplar handles POST /v1/exemplars.
func (s *Server) AddExemplar(w http.ResponseWriter, r *http.Request) {
	var req AddExemplarRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	var (
		id  string
		err error
	)
	if len(req.Embedding) > 0 {
		id, err = s.exemplars.AddExemplar(ctx, req.Domain, req.Text, req.Embedding)
	} else {
		id, err = s.exemplars.AddExemplarText(ctx, req.Domain, req.Text)
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	w.Header().Set("Location", "/v1/exemplars/"+id)
	writeJSON(w, http.StatusCreated, ExemplarResponse{ID: id, Domain: req.Domain})
}

// RetireExemplar handles DELETE /v1/exemplars/{id}.
func (s *Server) RetireExemplar(w http.ResponseWriter, r *http.Request) {
	id := gochi.URLParam(r, "id")
	if err := s.exemplars.RetireExemplar(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecomputeCentroids handles POST /v1/centroids/recompute.
func (s *Server) RecomputeCentroids(w http.ResponseWriter, r *http.Request) {
	sum, err := s.exemplars.RecomputeCentroids(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RecomputeResponse{
		Generation: sum.Generation,
		Counts:     sum.Counts,
		DurationMS: sum.Duration.Milliseconds(),
	})
}

// ListCentroids handles GET /v1/centroids.
func (s *Server) ListCentroids(w http.ResponseWriter, _ *http.Request) {
	resp := CentroidsResponse{Centroids: []CentroidResponse{}}
	if gen := s.exemplars.Centroids(); gen != nil {
		resp.Generation = gen.Number()
		at := time.UnixMilli(gen.ComputedAt()).UTC()
		resp.ComputedAt = &at
		for _, c := range gen.Centroids() {
			resp.Centroids = append(resp.Centroids, CentroidResponse{
				Domain:        c.Domain(),
				ExemplarCount: c.ExemplarCount(),
				UpdatedAt:     time.UnixMilli(c.UpdatedAt()).UTC(),
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Route handles POST /v1/route. Nothing is delivered; the decision is returned as-is.
func (s *Server) Route(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	var (
		decision routing.Decision
		err      error
	)
	if len(req.Embedding) > 0 {
		decision, err = s.router.Route(ctx, req.Text, req.Embedding, req.Language)
	} else {
		decision, err = s.router.RouteText(ctx, req.Text, req.Language)
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, decision)
}

// ApplySchema handles POST /v1/schema/apply.
func (s *Server) ApplySchema(w http.ResponseWriter, r *http.Request) {
	if err := s.exemplars.ApplySchema(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    CodeValidationFailed,
			Message: "request validation failed",
			Details: validationDetails(err),
		})
		return false
	}
	return true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrUnknownDomain,
		domain.ErrDimensionMismatch,
		domain.ErrNoActiveCentroids,
		domain.ErrRateLimited,
		domain.ErrUnauthenticated,
		domain.ErrRegistryUnavailable,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// validationHandler reports the offending field of a domain.ValidationError.
func validationHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, domain.ErrValidation) {
		return false
	}
	resp := ErrorResponse{Code: CodeValidationFailed, Message: domain.ErrValidation.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		resp.Message = ve.Error()
		resp.Details = map[string]string{ve.Field: ve.Reason}
	}
	writeJSON(w, http.StatusBadRequest, resp)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}
