package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/intentgate/internal/domain"
	"github.com/kailas-cloud/intentgate/internal/domain/routing"
	"github.com/kailas-cloud/intentgate/internal/logger"
	"github.com/kailas-cloud/intentgate/internal/metrics"
	"github.com/kailas-cloud/intentgate/internal/usecase/session"
)

// DefaultClarification is sent when no domain matches a turn.
const DefaultClarification = "I'm not sure what you are looking for yet. Could you tell me a bit more?"

// Config holds per-connection limits.
type Config struct {
	// InboundRate is frames per second per connection. Zero disables limiting.
	InboundRate    float64
	InboundBurst   int
	HandlerTimeout time.Duration
	Clarification  string
}

// Gateway runs the inbound loop of every connection: decode, limit, authorize,
// route, dispatch, respond.
type Gateway struct {
	router   Router
	sessions Sessions
	handlers *Registry
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a gateway.
func New(router Router, sessions Sessions, handlers *Registry, cfg Config, logger *zap.Logger) *Gateway {
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 10 * time.Second
	}
	if cfg.InboundBurst <= 0 {
		cfg.InboundBurst = 1
	}
	if cfg.Clarification == "" {
		cfg.Clarification = DefaultClarification
	}
	return &Gateway{
		router:   router,
		sessions: sessions,
		handlers: handlers,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Serve opens the session on t, sends the welcome frame and processes inbound frames
// in arrival order until the transport fails or the session closes.
func (g *Gateway) Serve(ctx context.Context, s *session.Session, t Transport) error {
	connCtx, err := g.sessions.Open(ctx, s, t)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	log := logger.FromContextOr(connCtx, g.logger)

	g.send(connCtx, s, Frame{
		Type:          FrameWelcome,
		ConnectionID:  s.ConnectionID(),
		CorrelationID: s.CorrelationID(),
	})

	limiter := g.newLimiter()
	for {
		data, err := t.ReadFrame()
		if err != nil {
			if connCtx.Err() == nil {
				log.Debug("Read loop ended", zap.Error(err))
			}
			g.sessions.Close(s.ConnectionID(), session.CloseClientGone)
			return nil
		}
		if connCtx.Err() != nil {
			return nil
		}

		g.sessions.Touch(s.ConnectionID())
		g.process(connCtx, s, limiter, data)
	}
}

func (g *Gateway) newLimiter() *rate.Limiter {
	if g.cfg.InboundRate <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(g.cfg.InboundRate), g.cfg.InboundBurst)
}

// process handles one inbound frame. Every outcome is reported to the client as a frame.
func (g *Gateway) process(ctx context.Context, s *session.Session, limiter *rate.Limiter, data []byte) {
	log := logger.FromContextOr(ctx, g.logger)

	var in InboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		g.reject(ctx, s, "", CodeBadFrame, "frame is not valid JSON", "invalid")
		return
	}

	switch in.Type {
	case InboundPing:
		g.send(ctx, s, Frame{Type: FramePong, ReplyTo: in.ID})
		metrics.InboundFramesTotal.WithLabelValues("ping").Inc()
		return
	case InboundMessage, "":
	default:
		g.reject(ctx, s, in.ID, CodeBadFrame, fmt.Sprintf("unknown frame type %q", in.Type), "invalid")
		return
	}

	text := strings.TrimSpace(in.Text)
	if text == "" && len(in.Embedding) == 0 {
		g.reject(ctx, s, in.ID, CodeBadFrame, "text is required", "invalid")
		return
	}

	if !limiter.Allow() {
		g.reject(ctx, s, in.ID, CodeRateLimited, domain.ErrRateLimited.Error(), "rate_limited")
		return
	}

	if in.Resource != "" {
		if err := g.sessions.Authorize(s, in.Resource); err != nil {
			g.reject(ctx, s, in.ID, CodeUnauthenticated, err.Error(), "unauthenticated")
			return
		}
	}

	decision, err := g.route(ctx, text, in)
	if err != nil {
		code := CodeRoutingFailed
		if errors.Is(err, domain.ErrDimensionMismatch) {
			code = CodeDimensionMismatch
		}
		log.Warn("Routing failed", zap.String("message_id", in.ID), zap.Error(err))
		g.reject(ctx, s, in.ID, code, err.Error(), "routing_failed")
		return
	}

	if !s.IsActive() {
		log.Debug("Session closed during routing, dropping result", zap.String("query_id", decision.QueryID))
		metrics.InboundFramesTotal.WithLabelValues("dropped").Inc()
		return
	}

	if decision.IsNone() {
		g.send(ctx, s, Frame{
			Type:    FrameClarification,
			ReplyTo: in.ID,
			Routing: &decision,
			Text:    g.cfg.Clarification,
			Options: g.handlers.Domains(),
		})
		metrics.InboundFramesTotal.WithLabelValues("clarification").Inc()
		return
	}

	if err := g.sessions.Authorize(s, decision.Domain); err != nil {
		g.reject(ctx, s, in.ID, CodeUnauthenticated, err.Error(), "unauthenticated")
		return
	}

	g.dispatch(ctx, s, in, text, decision)
}

func (g *Gateway) route(ctx context.Context, text string, in InboundFrame) (routing.Decision, error) {
	if len(in.Embedding) > 0 {
		return g.router.Route(ctx, text, in.Embedding, in.Language)
	}
	return g.router.RouteText(ctx, text, in.Language)
}

func (g *Gateway) dispatch(ctx context.Context, s *session.Session, in InboundFrame, text string, decision routing.Decision) {
	log := logger.FromContextOr(ctx, g.logger)

	h, ok := g.handlers.Lookup(decision.Domain)
	if !ok {
		log.Error("No handler registered for routed domain", zap.String("domain", decision.Domain))
		g.reject(ctx, s, in.ID, CodeHandlerUnavailable, "no handler for domain "+decision.Domain, "handler_error")
		return
	}

	hctx, cancel := context.WithTimeout(ctx, g.cfg.HandlerTimeout)
	defer cancel()

	start := g.now()
	frames, err := h.Handle(hctx, Request{
		Domain:        decision.Domain,
		Text:          text,
		Language:      in.Language,
		MessageID:     in.ID,
		UserID:        s.UserID(),
		ConnectionID:  s.ConnectionID(),
		CorrelationID: s.CorrelationID(),
		Decision:      decision,
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.HandlerRequestDuration.WithLabelValues(decision.Domain, status).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Warn("Domain handler failed",
			zap.String("domain", decision.Domain),
			zap.String("message_id", in.ID),
			zap.Error(err),
		)
		g.reject(ctx, s, in.ID, CodeHandlerFailed, "the "+decision.Domain+" service is unavailable", "handler_error")
		return
	}

	for i := range frames {
		f := frames[i]
		if f.Type == "" {
			f.Type = FrameResponse
		}
		if f.ReplyTo == "" {
			f.ReplyTo = in.ID
		}
		if f.Domain == "" {
			f.Domain = decision.Domain
		}
		if i == 0 {
			f.Routing = &decision
		}
		if !g.send(ctx, s, f) {
			return
		}
	}
	metrics.InboundFramesTotal.WithLabelValues("handled").Inc()
}

func (g *Gateway) reject(ctx context.Context, s *session.Session, replyTo, code, message, outcome string) {
	metrics.InboundFramesTotal.WithLabelValues(outcome).Inc()
	g.send(ctx, s, errorFrame(replyTo, code, message))
}

// send encodes and enqueues f. It reports false once the session can no longer take frames.
func (g *Gateway) send(ctx context.Context, s *session.Session, f Frame) bool {
	if f.Timestamp.IsZero() {
		f.Timestamp = g.now().UTC()
	}
	data, err := json.Marshal(f)
	if err != nil {
		logger.FromContextOr(ctx, g.logger).Error("Encode frame failed", zap.String("type", f.Type), zap.Error(err))
		return true
	}

	switch err := g.sessions.Send(s.ConnectionID(), data); {
	case err == nil:
		return true
	case errors.Is(err, domain.ErrBackpressureExceeded):
		logger.FromContextOr(ctx, g.logger).Warn("Outbound queue full, frame dropped", zap.String("type", f.Type))
		return true
	default:
		return false
	}
}
