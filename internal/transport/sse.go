package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("streaming not supported")

// SSEConn is a send-only Connection over a Server-Sent Events response.
// ReceiveNext blocks until the request context ends or Close is called,
// which lets a subscriber detect a departed client.
type SSEConn struct {
	ctx     context.Context
	w       http.ResponseWriter
	flusher http.Flusher

	mu     sync.Mutex // guards writes to w
	closed chan struct{}
	once   sync.Once
}

// NewSSEConn writes the event-stream headers and an initial "connected"
// event.
func NewSSEConn(ctx context.Context, w http.ResponseWriter) (*SSEConn, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	c := &SSEConn{
		ctx:     ctx,
		w:       w,
		flusher: flusher,
		closed:  make(chan struct{}),
	}
	if err := c.write("event: connected\ndata: ok\n\n"); err != nil {
		return nil, err
	}
	return c, nil
}

// ReceiveNext never yields data. It returns FrameClose after Close and a
// *ConnectionError once the client goes away.
func (c *SSEConn) ReceiveNext() (Frame, error) {
	select {
	case <-c.closed:
		return Frame{Kind: FrameClose}, nil
	case <-c.ctx.Done():
		return Frame{}, &ConnectionError{Op: "receive", Err: c.ctx.Err()}
	}
}

// Send emits text as one "message" event. Multi-line text is split across
// data fields so the client reassembles it unchanged.
func (c *SSEConn) Send(text string) error {
	var b strings.Builder
	b.WriteString("event: message\n")
	for _, line := range strings.Split(text, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return c.write(b.String())
}

// Close ends the stream from the server side. It waits for an in-flight
// write, so nothing touches the ResponseWriter once Close returns.
func (c *SSEConn) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		close(c.closed)
	})
	return nil
}

// Heartbeat writes a comment line every interval to keep proxies from
// closing an idle stream.
func (c *SSEConn) Heartbeat(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case <-ticker.C:
			if err := c.write(": heartbeat\n\n"); err != nil {
				return
			}
		}
	}
}

func (c *SSEConn) write(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closed:
		return &ConnectionError{Op: "send", Err: errors.New("stream closed")}
	default:
	}
	if err := c.ctx.Err(); err != nil {
		return &ConnectionError{Op: "send", Err: err}
	}
	if _, err := fmt.Fprint(c.w, s); err != nil {
		return &ConnectionError{Op: "send", Err: err}
	}
	c.flusher.Flush()
	return nil
}
