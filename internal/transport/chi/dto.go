package chi

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	domterm "github.com/kailas-cloud/intentgate/internal/domain/term"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest          = "bad_request"
	CodeValidationFailed    = "validation_failed"
	CodeUnauthorized        = "unauthorized"
	CodeNotFound            = "not_found"
	CodeUnknownDomain       = "unknown_domain"
	CodeDimensionMismatch   = "dimension_mismatch"
	CodeNoActiveCentroids   = "no_active_centroids"
	CodeRegistryUnavailable = "registry_unavailable"
	CodeEmbeddingProvider   = "embedding_provider_error"
	CodeRateLimited         = "rate_limited"
	CodeInternal            = "internal_error"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// UpsertTermRequest is the body of PUT /v1/terms.
type UpsertTermRequest struct {
	BaseTerm      string `json:"base_term" validate:"required,max=200"`
	LocalizedTerm string `json:"localized_term" validate:"required,max=200"`
	Language      string `json:"language" validate:"omitempty,language_tag"`
}

// TermResponse is a stored term.
type TermResponse struct {
	ID            string `json:"id"`
	BaseTerm      string `json:"base_term"`
	LocalizedTerm string `json:"localized_term"`
	Language      string `json:"language"`
}

// NormalizeResponse is the body of GET /v1/terms/normalize.
type NormalizeResponse struct {
	Input      string `json:"input"`
	Language   string `json:"language,omitempty"`
	Normalized string `json:"normalized"`
}

// AddExemplarRequest is the body of POST /v1/exemplars. Without an embedding the text is embedded.
type AddExemplarRequest struct {
	Domain    string    `json:"domain" validate:"required,max=64"`
	Text      string    `json:"text" validate:"required,max=2000"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// ExemplarResponse identifies a stored exemplar.
type ExemplarResponse struct {
	ID     string `json:"id"`
	Domain string `json:"domain"`
}

// RouteRequest is the body of POST /v1/route.
type RouteRequest struct {
	Text      string    `json:"text" validate:"required_without=Embedding,max=2000"`
	Language  string    `json:"language" validate:"omitempty,language_tag"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// CentroidResponse describes one centroid without its vector.
type CentroidResponse struct {
	Domain        string    `json:"domain"`
	ExemplarCount int       `json:"exemplar_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CentroidsResponse is the body of GET /v1/centroids.
type CentroidsResponse struct {
	Generation int64              `json:"generation"`
	ComputedAt *time.Time         `json:"computed_at,omitempty"`
	Centroids  []CentroidResponse `json:"centroids"`
}

// RecomputeResponse is the body of POST /v1/centroids/recompute.
type RecomputeResponse struct {
	Generation int64          `json:"generation"`
	Counts     map[string]int `json:"counts"`
	DurationMS int64          `json:"duration_ms"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("language_tag", func(fl validator.FieldLevel) bool {
		return domterm.ValidLanguage(fl.Field().String())
	})
	return v
}

// validationDetails maps JSON field names to the failing rule.
func validationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
