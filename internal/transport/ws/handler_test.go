package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/intentgate/internal/auth"
	"github.com/kailas-cloud/intentgate/internal/domain/routing"
	"github.com/kailas-cloud/intentgate/internal/usecase/gateway"
	"github.com/kailas-cloud/intentgate/internal/usecase/session"
)

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	if token == "good" {
		return auth.Identity{UserID: "user-1"}, nil
	}
	return auth.Identity{}, auth.ErrInvalidToken
}

type fixedRouter struct{ domain string }

func (r fixedRouter) Route(ctx context.Context, text string, _ []float32, lang string) (routing.Decision, error) {
	return r.RouteText(ctx, text, lang)
}

func (r fixedRouter) RouteText(context.Context, string, string) (routing.Decision, error) {
	return routing.Decision{QueryID: "q", Domain: r.domain, Confidence: 0.9, MatchedVia: routing.MatchedVector}, nil
}

type testServer struct {
	srv      *httptest.Server
	sessions *session.Manager
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	sessions := session.NewManager(stubVerifier{}, session.Config{RestrictedResources: []string{"bookings"}}, nil, zap.NewNop())
	reg := gateway.NewRegistry()
	reg.Register("bookings", gateway.HandlerFunc(func(_ context.Context, req gateway.Request) ([]gateway.Frame, error) {
		return []gateway.Frame{{Text: "hello " + req.UserID}}, nil
	}))
	gw := gateway.New(fixedRouter{domain: "bookings"}, sessions, reg, gateway.Config{}, zap.NewNop())

	srv := httptest.NewServer(NewHandler(sessions, gw, cfg, zap.NewNop()))
	t.Cleanup(func() {
		sessions.CloseAll(session.CloseShutdown)
		srv.Close()
	})
	return &testServer{srv: srv, sessions: sessions}
}

func (ts *testServer) dial(t *testing.T, query string, header http.Header) (*websocket.Conn, *http.Response) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/?" + query
	c, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, resp
}

func readFrame(t *testing.T, c *websocket.Conn) gateway.Frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f gateway.Frame
	require.NoError(t, c.ReadJSON(&f))
	return f
}

func TestHandler_WelcomeAndCorrelationHeader(t *testing.T) {
	ts := newTestServer(t, Config{})

	c, resp := ts.dial(t, "correlation_id=corr-abc-123", nil)
	assert.Equal(t, "corr-abc-123", resp.Header.Get(CorrelationHeader))

	f := readFrame(t, c)
	assert.Equal(t, gateway.FrameWelcome, f.Type)
	assert.Equal(t, "corr-abc-123", f.CorrelationID)
	assert.NotEmpty(t, f.ConnectionID)
}

func TestHandler_MintsCorrelationIDWhenInvalid(t *testing.T) {
	ts := newTestServer(t, Config{})

	header := http.Header{}
	header.Set(CorrelationHeader, "bad id")
	c, resp := ts.dial(t, "", header)

	minted := resp.Header.Get(CorrelationHeader)
	require.NotEmpty(t, minted)
	assert.NotEqual(t, "bad id", minted)
	assert.Equal(t, minted, readFrame(t, c).CorrelationID)
}

func TestHandler_AuthenticatedTurn(t *testing.T) {
	ts := newTestServer(t, Config{})

	header := http.Header{}
	header.Set("Authorization", "Bearer good")
	c, _ := ts.dial(t, "", header)
	readFrame(t, c)

	require.NoError(t, c.WriteJSON(gateway.InboundFrame{Type: gateway.InboundMessage, ID: "m1", Text: "book"}))
	f := readFrame(t, c)
	assert.Equal(t, gateway.FrameResponse, f.Type)
	assert.Equal(t, "hello user-1", f.Text)
}

func TestHandler_ExpiredTokenIsAnonymous(t *testing.T) {
	ts := newTestServer(t, Config{})

	c, _ := ts.dial(t, "token=expired", nil)
	readFrame(t, c)

	require.NoError(t, c.WriteJSON(gateway.InboundFrame{Type: gateway.InboundMessage, ID: "m1", Text: "book"}))
	f := readFrame(t, c)
	require.NotNil(t, f.Error)
	assert.Equal(t, gateway.CodeUnauthenticated, f.Error.Code)
}

func TestHandler_ClientCloseReleasesSession(t *testing.T) {
	ts := newTestServer(t, Config{})

	c, _ := ts.dial(t, "", nil)
	readFrame(t, c)
	require.Equal(t, 1, ts.sessions.Count())

	require.NoError(t, c.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	c.Close()

	require.Eventually(t, func() bool { return ts.sessions.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_ServerShutdownSendsCloseFrame(t *testing.T) {
	ts := newTestServer(t, Config{})

	c, _ := ts.dial(t, "", nil)
	readFrame(t, c)

	ts.sessions.CloseAll(session.CloseShutdown)

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := c.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestHandler_RejectsDisallowedOrigin(t *testing.T) {
	ts := newTestServer(t, Config{AllowedOrigins: []string{"https://app.example.com"}})

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http")
	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, ts.sessions.Count())
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{"query", func(r *http.Request) { r.URL.RawQuery = "token=q" }, "q"},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer  h ") }, "h"},
		{"basic ignored", func(r *http.Request) { r.Header.Set("Authorization", "Basic x") }, ""},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: tokenCookie, Value: "c"}) }, "c"},
		{"none", func(*http.Request) {}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/v1/ws", nil)
			tc.setup(r)
			assert.Equal(t, tc.want, extractToken(r))
		})
	}
}

func TestCloseCode(t *testing.T) {
	assert.Equal(t, websocket.CloseGoingAway, closeCode(session.CloseShutdown))
	assert.Equal(t, websocket.CloseGoingAway, closeCode(session.CloseIdleTimeout))
	assert.Equal(t, websocket.CloseProtocolError, closeCode(session.CloseProtocolError))
	assert.Equal(t, websocket.CloseNormalClosure, closeCode(session.CloseClientGone))
}
