package gateway

import (
	"context"

	"github.com/kailas-cloud/intentgate/internal/domain/routing"
	"github.com/kailas-cloud/intentgate/internal/usecase/session"
)

// Router classifies a turn.
type Router interface {
	Route(ctx context.Context, rawText string, embedding []float32, language string) (routing.Decision, error)
	RouteText(ctx context.Context, text, language string) (routing.Decision, error)
}

// Sessions is the session manager surface the gateway drives.
type Sessions interface {
	Open(ctx context.Context, s *session.Session, conn session.Conn) (context.Context, error)
	Send(connectionID string, frame []byte) error
	Close(connectionID, reason string)
	Touch(connectionID string)
	Authorize(s *session.Session, resource string) error
}

// Transport is a bidirectional frame connection. ReadFrame blocks until a frame arrives
// or the connection fails; closing the connection unblocks it.
type Transport interface {
	session.Conn
	ReadFrame() ([]byte, error)
}
