package session

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/intentgate/internal/domain"
	"github.com/kailas-cloud/intentgate/internal/logger"
)

var correlationIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{8,128}$`)

// Config holds session limits.
type Config struct {
	QueueDepth          int
	IdleTimeout         time.Duration
	SweepInterval       time.Duration
	RestrictedResources []string
}

// Manager tracks connection sessions, their outbound queues and idle eviction.
type Manager struct {
	verifier   TokenVerifier
	cfg        Config
	observer   Observer
	restricted map[string]struct{}
	logger     *zap.Logger
	now        func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. verifier and observer can be nil.
func NewManager(verifier TokenVerifier, cfg Config, observer Observer, logger *zap.Logger) *Manager {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 256
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if observer == nil {
		observer = nopObserver{}
	}
	restricted := make(map[string]struct{}, len(cfg.RestrictedResources))
	for _, r := range cfg.RestrictedResources {
		restricted[r] = struct{}{}
	}
	return &Manager{
		verifier:   verifier,
		cfg:        cfg,
		observer:   observer,
		restricted: restricted,
		logger:     logger,
		now:        time.Now,
		sessions:   make(map[string]*Session),
	}
}

// Authenticate verifies token and creates a session. Verification failures never error:
// they yield an anonymous session in StateUnauthenticated.
func (m *Manager) Authenticate(ctx context.Context, token, correlationID string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	now := m.now()
	s := &Session{
		connectionID:   uuid.NewString(),
		correlationID:  adoptCorrelationID(correlationID),
		state:          StateConnecting,
		connectedAt:    now,
		lastActivityAt: now,
		done:           make(chan struct{}),
	}

	if m.verifier == nil || token == "" {
		s.state = StateUnauthenticated
		return s, nil
	}

	id, err := m.verifier.Verify(ctx, token)
	if err != nil {
		m.logger.Info("Token verification failed, continuing anonymously",
			zap.String("connection_id", s.connectionID),
			zap.String("correlation_id", s.correlationID),
			zap.Error(err),
		)
		s.state = StateUnauthenticated
		return s, nil
	}

	s.userID = id.UserID
	s.roles = id.Roles
	s.authenticated = true
	s.state = StateAuthenticated
	return s, nil
}

// Open binds conn to s, starts its writer task and moves it to StateActive.
// The returned context is cancelled when the session closes.
func (m *Manager) Open(ctx context.Context, s *Session, conn Conn) (context.Context, error) {
	s.mu.Lock()
	if s.state != StateAuthenticated && s.state != StateUnauthenticated {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("open session in state %s: %w", state, domain.ErrNotActive)
	}
	connCtx, cancel := context.WithCancel(ctx)
	s.queue = make(chan []byte, m.cfg.QueueDepth)
	s.conn = conn
	s.cancel = cancel
	s.state = StateActive
	s.lastActivityAt = m.now()
	s.mu.Unlock()

	m.mu.Lock()
	m.sessions[s.connectionID] = s
	m.mu.Unlock()

	m.observer.IncrementActiveConnections()

	log := logger.ForConnection(m.logger, s.connectionID, s.correlationID, s.userID)
	go m.writeLoop(s, log)

	log.Info("Session opened", zap.Bool("authenticated", s.authenticated))
	return logger.ContextWithLogger(connCtx, log), nil
}

// Send enqueues frame for the connection's writer. It never blocks.
func (m *Manager) Send(connectionID string, frame []byte) error {
	s, ok := m.Get(connectionID)
	if !ok {
		return domain.ErrNotActive
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return domain.ErrNotActive
	}
	select {
	case s.queue <- frame:
		return nil
	default:
		m.observer.RecordSendFailure("backpressure")
		return domain.ErrBackpressureExceeded
	}
}

// Close moves the session to Closing; the writer flushes queued frames, closes the
// transport and marks it Closed. Closing an unknown or closed session is a no-op.
func (m *Manager) Close(connectionID, reason string) {
	s, ok := m.Get(connectionID)
	if !ok {
		return
	}
	m.closeSession(s, reason)
}

// CloseSession closes a session that may not have been opened yet.
func (m *Manager) CloseSession(s *Session, reason string) {
	m.closeSession(s, reason)
}

func (m *Manager) closeSession(s *Session, reason string) {
	s.mu.Lock()
	if s.state >= StateClosing {
		s.mu.Unlock()
		return
	}
	wasActive := s.state == StateActive
	s.closeReason = reason
	if !wasActive {
		s.state = StateClosed
		close(s.done)
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	s.cancel()
	close(s.queue)
	s.mu.Unlock()

	m.mu.Lock()
	delete(m.sessions, s.connectionID)
	m.mu.Unlock()

	m.observer.DecrementActiveConnections()
	if r, ok := m.observer.(closeRecorder); ok {
		r.RecordClose(reason)
	}
}

// Touch records inbound activity.
func (m *Manager) Touch(connectionID string) {
	s, ok := m.Get(connectionID)
	if !ok {
		return
	}
	s.mu.Lock()
	s.lastActivityAt = m.now()
	s.mu.Unlock()
}

// Get returns an open session.
func (m *Manager) Get(connectionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[connectionID]
	return s, ok
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Authorize rejects anonymous sessions for restricted resources.
func (m *Manager) Authorize(s *Session, resource string) error {
	if _, ok := m.restricted[resource]; !ok || s.Authenticated() {
		return nil
	}
	return fmt.Errorf("resource %q: %w", resource, domain.ErrUnauthenticated)
}

// Run sweeps idle sessions until ctx is done, then closes every session.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.CloseAll(CloseShutdown)
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep closes sessions idle longer than IdleTimeout and returns how many were closed.
func (m *Manager) Sweep() int {
	if m.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.cfg.IdleTimeout)

	var idle []*Session
	for _, s := range m.snapshot() {
		if s.LastActivityAt().Before(cutoff) {
			idle = append(idle, s)
		}
	}
	for _, s := range idle {
		m.closeSession(s, CloseIdleTimeout)
	}
	if len(idle) > 0 {
		m.logger.Info("Idle sessions closed", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// CloseAll closes every open session with reason.
func (m *Manager) CloseAll(reason string) {
	for _, s := range m.snapshot() {
		m.closeSession(s, reason)
	}
}

func (m *Manager) snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// writeLoop is the only goroutine writing to s.conn. It drains the queue until Close closes it.
func (m *Manager) writeLoop(s *Session, log *zap.Logger) {
	failed := false
	for frame := range s.queue {
		if failed {
			m.observer.RecordSendFailure("closed")
			continue
		}
		if err := s.conn.WriteFrame(frame); err != nil {
			failed = true
			m.observer.RecordSendFailure("write_error")
			log.Warn("Frame write failed, closing session", zap.Error(err))
			m.closeSession(s, CloseWriteError)
		}
	}

	reason := s.CloseReason()
	if err := s.conn.Close(reason); err != nil {
		log.Debug("Transport close failed", zap.Error(err))
	}

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	close(s.done)

	log.Info("Session closed", zap.String("reason", reason))
}

// adoptCorrelationID keeps a well-formed client id, otherwise mints one.
func adoptCorrelationID(presented string) string {
	if correlationIDPattern.MatchString(presented) {
		return presented
	}
	return uuid.NewString()
}
