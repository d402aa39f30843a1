package session

import (
	"context"

	"github.com/kailas-cloud/intentgate/internal/auth"
)

// TokenVerifier verifies a handshake bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.Identity, error)
}

// Conn is the transport a session writes to. Only the session's writer task calls WriteFrame.
type Conn interface {
	WriteFrame(data []byte) error
	Close(reason string) error
}

// Observer receives connection lifecycle events.
type Observer interface {
	IncrementActiveConnections()
	DecrementActiveConnections()
	RecordSendFailure(reason string)
}

type closeRecorder interface {
	RecordClose(reason string)
}

type nopObserver struct{}

func (nopObserver) IncrementActiveConnections() {}
func (nopObserver) DecrementActiveConnections() {}
func (nopObserver) RecordSendFailure(string)    {}
