package chi

import (
	"net/http"
	"time"

	gochi "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/intentgate/internal/metrics"
)

// RouterConfig holds the HTTP edge settings.
type RouterConfig struct {
	APIKeys        []string
	AllowedOrigins []string
	// RateLimitPerSec is requests per second per client IP. Zero disables limiting.
	RateLimitPerSec float64
	RateLimitBurst  int
}

// NewRouter mounts the API, health, metrics and the websocket endpoint ws (when non-nil).
func NewRouter(s *Server, ws http.Handler, cfg RouterConfig, logger *zap.Logger) http.Handler {
	r := gochi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(cors.Handler(corsOptions(cfg.AllowedOrigins)))
	if cfg.RateLimitPerSec > 0 {
		r.Use(rateLimitMiddleware(newIPRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst, 0, 10*time.Minute)))
	}
	r.Use(BearerAuthMiddleware(cfg.APIKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r gochi.Router) {
		if ws != nil {
			r.Handle("/ws", ws)
		}
		r.Put("/terms", s.UpsertTerm)
		r.Get("/terms/normalize", s.NormalizeTerm)
		r.Post("/exemplars", s.AddExemplar)
		r.Delete("/exemplars/{id}", s.RetireExemplar)
		r.Post("/centroids/recompute", s.RecomputeCentroids)
		r.Get("/centroids", s.ListCentroids)
		r.Post("/route", s.Route)
		r.Post("/schema/apply", s.ApplySchema)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Correlation-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Correlation-ID", "X-Embedding-Tokens"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}
