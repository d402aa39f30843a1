// Package handlerhttp serves routed turns by POSTing them to a domain service over HTTP.
package handlerhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kailas-cloud/intentgate/internal/usecase/gateway"
)

// ErrUnavailable is returned while the breaker is open or probing.
var ErrUnavailable = errors.New("domain handler unavailable")

const maxResponseBytes = 1 << 20

// Config describes one domain endpoint and its breaker.
type Config struct {
	Domain           string
	URL              string
	Timeout          time.Duration
	MaxRequests      uint32
	Interval         time.Duration
	OpenTimeout      time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultConfig returns breaker defaults for domain at url.
func DefaultConfig(domain, url string) Config {
	return Config{
		Domain:           domain,
		URL:              url,
		Timeout:          5 * time.Second,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		OpenTimeout:      60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// StatusError is a non-2xx reply from the domain service.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("domain service returned %d", e.StatusCode)
}

type response struct {
	Frames []gateway.Frame `json:"frames"`
}

// Handler implements gateway.Handler over HTTP.
type Handler struct {
	url    string
	client *http.Client
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// New creates an HTTP domain handler. A nil client gets one with cfg.Timeout.
func New(cfg Config, client *http.Client, logger *zap.Logger) *Handler {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	log := logger.With(zap.String("domain", cfg.Domain))
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "handler:" + cfg.Domain,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// 4xx responses do not count against the breaker.
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < 500
			}
			return err == nil
		},
	})
	return &Handler{url: cfg.URL, client: client, cb: cb, logger: log}
}

// Handle POSTs req as JSON and decodes {"frames": [...]}.
func (h *Handler) Handle(ctx context.Context, req gateway.Request) ([]gateway.Frame, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	out, err := h.cb.Execute(func() (any, error) {
		return h.post(ctx, body, req.CorrelationID)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, err
	}
	return out.([]gateway.Frame), nil
}

// State reports the breaker state.
func (h *Handler) State() gobreaker.State {
	return h.cb.State()
}

func (h *Handler) post(ctx context.Context, body []byte, correlationID string) ([]gateway.Frame, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if correlationID != "" {
		httpReq.Header.Set("X-Correlation-ID", correlationID)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var r response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return r.Frames, nil
}
