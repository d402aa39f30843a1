package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kailas-cloud/intentgate/internal/usecase/gateway"
	"github.com/kailas-cloud/intentgate/internal/usecase/session"
)

// CorrelationHeader carries the correlation id on the handshake request and response.
const CorrelationHeader = "X-Correlation-ID"

const tokenCookie = "auth_token"

// Authenticator creates sessions from handshake credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, token, correlationID string) (*session.Session, error)
}

// Gateway runs a connection until it ends.
type Gateway interface {
	Serve(ctx context.Context, s *session.Session, t gateway.Transport) error
}

// Config holds websocket upgrade settings.
type Config struct {
	ReadBufferSize  int
	WriteBufferSize int
	// AllowedOrigins restricts the Origin header. Empty allows any origin.
	AllowedOrigins []string
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
}

// Handler upgrades handshake requests and hands the connection to the gateway.
type Handler struct {
	auth      Authenticator
	gw        Gateway
	upgrader  websocket.Upgrader
	writeWait time.Duration
	pongWait  time.Duration
	logger    *zap.Logger
}

// NewHandler creates the websocket endpoint handler.
func NewHandler(auth Authenticator, gw Gateway, cfg Config, logger *zap.Logger) *Handler {
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = 1024
	}
	if cfg.WriteBufferSize <= 0 {
		cfg.WriteBufferSize = 1024
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = writeWait
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = pongWait
	}
	return &Handler{
		auth: auth,
		gw:   gw,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		writeWait: cfg.WriteTimeout,
		pongWait:  cfg.PongTimeout,
		logger:    logger,
	}
}

// ServeHTTP authenticates, upgrades and blocks for the life of the connection.
// A missing or invalid token yields an anonymous session, not a rejected handshake.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	correlationID := r.URL.Query().Get("correlation_id")
	if correlationID == "" {
		correlationID = r.Header.Get(CorrelationHeader)
	}

	s, err := h.auth.Authenticate(r.Context(), extractToken(r), correlationID)
	if err != nil {
		h.logger.Error("Handshake failed", zap.Error(err), zap.String("remote_addr", r.RemoteAddr))
		http.Error(w, "handshake failed", http.StatusServiceUnavailable)
		return
	}

	header := http.Header{}
	header.Set(CorrelationHeader, s.CorrelationID())
	wsConn, err := h.upgrader.Upgrade(w, r, header)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("Websocket upgrade failed",
			zap.Error(err),
			zap.String("correlation_id", s.CorrelationID()),
			zap.String("remote_addr", r.RemoteAddr),
		)
		return
	}

	conn := newConn(wsConn, h.writeWait, h.pongWait)
	if err := h.gw.Serve(context.WithoutCancel(r.Context()), s, conn); err != nil {
		h.logger.Error("Connection ended with error",
			zap.String("connection_id", s.ConnectionID()),
			zap.Error(err),
		)
		_ = conn.Close(session.CloseProtocolError)
	}
}

// extractToken reads the bearer token from the query, the Authorization header or a cookie.
func extractToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	if c, err := r.Cookie(tokenCookie); err == nil {
		return c.Value
	}
	return ""
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}
