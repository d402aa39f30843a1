package session

import (
	"context"
	"slices"
	"sync"
	"time"
)

// State is a connection session lifecycle state.
type State int

const (
	StateConnecting State = iota
	// StateAuthenticated means the token verified and a user is bound.
	StateAuthenticated
	// StateUnauthenticated is the anonymous outcome of a failed verification.
	StateUnauthenticated
	// StateActive is the only state in which Send succeeds.
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Close reasons.
const (
	CloseClientGone    = "client_closed"
	CloseIdleTimeout   = "idle_timeout"
	CloseWriteError    = "write_error"
	CloseProtocolError = "protocol_error"
	CloseShutdown      = "shutdown"
)

// Session is one real-time connection. The manager owns all mutations.
type Session struct {
	mu sync.Mutex

	connectionID  string
	userID        string
	correlationID string
	roles         []string
	authenticated bool

	state          State
	connectedAt    time.Time
	lastActivityAt time.Time
	closeReason    string

	queue  chan []byte
	conn   Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// ConnectionID returns the server-assigned connection id.
func (s *Session) ConnectionID() string { return s.connectionID }

// UserID returns the bound user, or "" for anonymous sessions.
func (s *Session) UserID() string { return s.userID }

// CorrelationID returns the id threaded through logs and metrics for this connection.
func (s *Session) CorrelationID() string { return s.correlationID }

// Roles returns the token roles.
func (s *Session) Roles() []string { return slices.Clone(s.roles) }

// Authenticated reports whether a token was verified.
func (s *Session) Authenticated() bool { return s.authenticated }

// ConnectedAt returns the handshake time.
func (s *Session) ConnectedAt() time.Time { return s.connectedAt }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActivityAt returns the last inbound activity time.
func (s *Session) LastActivityAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivityAt
}

// CloseReason returns why the session closed, or "" while open.
func (s *Session) CloseReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeReason
}

// Done is closed once the session reaches StateClosed.
func (s *Session) Done() <-chan struct{} { return s.done }

// IsActive reports whether frames can still be sent.
func (s *Session) IsActive() bool { return s.State() == StateActive }
