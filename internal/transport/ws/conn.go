package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kailas-cloud/intentgate/internal/usecase/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 64 * 1024
)

// Conn adapts a gorilla websocket to the gateway transport. WriteFrame is called only by the
// session writer, ReadFrame only by the gateway loop; pings and close frames go through
// WriteControl, which gorilla allows concurrently with both.
type Conn struct {
	ws         *websocket.Conn
	writeWait  time.Duration
	pingPeriod time.Duration

	stop      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, writeWait, pongWait time.Duration) *Conn {
	c := &Conn{
		ws:         ws,
		writeWait:  writeWait,
		pingPeriod: (pongWait * 9) / 10,
		stop:       make(chan struct{}),
	}

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.pingLoop()
	return c
}

// ReadFrame blocks for the next data message.
func (c *Conn) ReadFrame() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, nil
}

// WriteFrame writes one text message.
func (c *Conn) WriteFrame(data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame carrying reason and tears the socket down. Safe to call more than once.
func (c *Conn) Close(reason string) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		msg := websocket.FormatCloseMessage(closeCode(reason), reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeWait))
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait)); err != nil {
				return
			}
		}
	}
}

func closeCode(reason string) int {
	switch reason {
	case session.CloseShutdown, session.CloseIdleTimeout:
		return websocket.CloseGoingAway
	case session.CloseProtocolError:
		return websocket.CloseProtocolError
	case session.CloseWriteError:
		return websocket.CloseInternalServerErr
	default:
		return websocket.CloseNormalClosure
	}
}
