package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/intentgate/internal/auth"
	"github.com/kailas-cloud/intentgate/internal/domain/routing"
	"github.com/kailas-cloud/intentgate/internal/usecase/session"
)

// --- Transport ---

type pipe struct {
	in        chan []byte
	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newPipe() *pipe {
	return &pipe{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (p *pipe) ReadFrame() ([]byte, error) {
	select {
	case b, ok := <-p.in:
		if !ok {
			return nil, io.EOF
		}
		return b, nil
	case <-p.closed:
		return nil, io.EOF
	}
}

func (p *pipe) WriteFrame(data []byte) error {
	select {
	case p.out <- data:
		return nil
	case <-p.closed:
		return errors.New("pipe closed")
	}
}

func (p *pipe) Close(string) error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *pipe) push(t *testing.T, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	p.in <- b
}

func (p *pipe) next(t *testing.T) Frame {
	t.Helper()
	select {
	case b := <-p.out:
		var f Frame
		require.NoError(t, json.Unmarshal(b, &f))
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}
	}
}

// --- Router ---

type fakeRouter struct {
	mu        sync.Mutex
	routeFn   func(text string, emb []float32, lang string) (routing.Decision, error)
	textCalls int
	vecCalls  int
}

func (r *fakeRouter) Route(_ context.Context, text string, emb []float32, lang string) (routing.Decision, error) {
	r.mu.Lock()
	r.vecCalls++
	r.mu.Unlock()
	return r.routeFn(text, emb, lang)
}

func (r *fakeRouter) RouteText(_ context.Context, text, lang string) (routing.Decision, error) {
	r.mu.Lock()
	r.textCalls++
	r.mu.Unlock()
	return r.routeFn(text, nil, lang)
}

func routeTo(domainID string) *fakeRouter {
	return &fakeRouter{routeFn: func(string, []float32, string) (routing.Decision, error) {
		via := routing.MatchedVector
		if domainID == routing.DomainNone {
			via = routing.MatchedNone
		}
		return routing.Decision{QueryID: "q-1", Domain: domainID, Confidence: 0.9, MatchedVia: via}, nil
	}}
}

// --- Verifier ---

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	if token == "good" {
		return auth.Identity{UserID: "user-1"}, nil
	}
	return auth.Identity{}, auth.ErrInvalidToken
}

// --- Harness ---

type harness struct {
	gw       *Gateway
	sessions *session.Manager
	pipe     *pipe
	sess     *session.Session
	done     chan error
	cancel   context.CancelFunc
}

func startGateway(t *testing.T, router Router, handlers *Registry, cfg Config, token string) *harness {
	t.Helper()
	sessions := session.NewManager(stubVerifier{}, session.Config{
		QueueDepth:          16,
		RestrictedResources: []string{"bookings"},
	}, nil, zap.NewNop())
	gw := New(router, sessions, handlers, cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s, err := sessions.Authenticate(ctx, token, "corr-test-0001")
	require.NoError(t, err)

	h := &harness{gw: gw, sessions: sessions, pipe: newPipe(), sess: s, done: make(chan error, 1), cancel: cancel}
	go func() { h.done <- gw.Serve(ctx, s, h.pipe) }()
	t.Cleanup(func() {
		cancel()
		h.pipe.Close("test done")
	})
	return h
}

func (h *harness) welcome(t *testing.T) Frame {
	t.Helper()
	f := h.pipe.next(t)
	require.Equal(t, FrameWelcome, f.Type)
	return f
}

func message(id, text string) InboundFrame {
	return InboundFrame{Type: InboundMessage, ID: id, Text: text}
}

func echoHandler(calls *[]Request, mu *sync.Mutex) Handler {
	return HandlerFunc(func(_ context.Context, req Request) ([]Frame, error) {
		mu.Lock()
		*calls = append(*calls, req)
		mu.Unlock()
		return []Frame{{Text: "handled: " + req.Text}}, nil
	})
}
