package transport

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// WSConn adapts a gorilla WebSocket connection to Connection.
type WSConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	pongWait     time.Duration
}

// WSOption configures a WSConn.
type WSOption func(*WSConn)

// WithWriteTimeout bounds every Send.
func WithWriteTimeout(d time.Duration) WSOption {
	return func(c *WSConn) {
		c.writeTimeout = d
	}
}

// WithMaxMessageSize limits the size of inbound messages.
func WithMaxMessageSize(n int64) WSOption {
	return func(c *WSConn) {
		if n > 0 {
			c.conn.SetReadLimit(n)
		}
	}
}

// WithPongWait makes reads fail when no pong (or other frame) arrives within
// d. Use together with Keepalive.
func WithPongWait(d time.Duration) WSOption {
	return func(c *WSConn) {
		c.pongWait = d
	}
}

// NewWSConn wraps conn.
func NewWSConn(conn *websocket.Conn, opts ...WSOption) *WSConn {
	c := &WSConn{conn: conn}
	for _, opt := range opts {
		opt(c)
	}
	if c.pongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(c.pongWait))
		})
	}
	return c
}

// ReceiveNext reads the next data frame. A close frame from the peer yields
// FrameClose; an abrupt disconnect or protocol error yields a
// *ConnectionError.
func (c *WSConn) ReceiveNext() (Frame, error) {
	typ, data, err := c.conn.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure {
			return Frame{Kind: FrameClose}, nil
		}
		return Frame{}, &ConnectionError{Op: "receive", Err: err}
	}
	if c.pongWait > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	}

	if typ == websocket.TextMessage {
		return Frame{Kind: FrameText, Text: string(data)}, nil
	}
	return Frame{Kind: FrameOther}, nil
}

// Send writes text as a single text frame.
func (c *WSConn) Send(text string) error {
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return &ConnectionError{Op: "send", Err: err}
	}
	return nil
}

// Close tears down the underlying network connection.
func (c *WSConn) Close() error {
	return c.conn.Close()
}

// Keepalive pings the peer every interval until ctx ends or a ping fails.
// Control frames may be written concurrently with Send.
func (c *WSConn) Keepalive(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(interval)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
