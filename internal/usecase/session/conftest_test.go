package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/intentgate/internal/auth"
)

// --- Transport ---

type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	closed   bool
	reason   string
	writeErr error
	gate     chan struct{} // when set, WriteFrame blocks until it receives
	writing  chan struct{} // when set, signalled at the start of each WriteFrame
}

func (c *fakeConn) WriteFrame(data []byte) error {
	if c.writing != nil {
		c.writing <- struct{}{}
	}
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeConn) Close(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.reason = reason
	return nil
}

func (c *fakeConn) Frames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.frames))
	for i, f := range c.frames {
		out[i] = string(f)
	}
	return out
}

func (c *fakeConn) Closed() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.reason
}

// --- Observer ---

type countingObserver struct {
	mu       sync.Mutex
	active   int
	incs     int
	decs     int
	failures map[string]int
	closes   map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{failures: map[string]int{}, closes: map[string]int{}}
}

func (o *countingObserver) IncrementActiveConnections() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active++
	o.incs++
}

func (o *countingObserver) DecrementActiveConnections() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active--
	o.decs++
}

func (o *countingObserver) RecordSendFailure(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures[reason]++
}

func (o *countingObserver) RecordClose(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closes[reason]++
}

func (o *countingObserver) snapshot() (active, incs, decs int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active, o.incs, o.decs
}

func (o *countingObserver) failuresFor(reason string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failures[reason]
}

// --- Verifier ---

type stubVerifier map[string]auth.Identity

var errBadToken = errors.New("bad token")

func (v stubVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	switch token {
	case "expired":
		return auth.Identity{}, auth.ErrExpiredToken
	}
	id, ok := v[token]
	if !ok {
		return auth.Identity{}, errBadToken
	}
	return id, nil
}

// --- Clock ---

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// --- Helpers ---

func newTestManager(cfg Config) (*Manager, *countingObserver, *fakeClock) {
	obs := newCountingObserver()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	verifier := stubVerifier{
		"good": {UserID: "user-1", Roles: []string{"buyer"}},
	}
	m := NewManager(verifier, cfg, obs, zap.NewNop())
	m.now = clock.Now
	return m, obs, clock
}
