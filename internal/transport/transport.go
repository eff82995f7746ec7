// Package transport adapts bidirectional message streams (WebSocket, SSE)
// to the Connection interface used by the client engine.
package transport

import (
	"errors"
	"fmt"
)

// FrameKind classifies an inbound frame.
type FrameKind int

const (
	// FrameText carries a UTF-8 text message.
	FrameText FrameKind = iota
	// FrameClose means the peer ended the session.
	FrameClose
	// FrameOther is any other data frame (binary). Callers drop it.
	FrameOther
)

func (k FrameKind) String() string {
	switch k {
	case FrameText:
		return "text"
	case FrameClose:
		return "close"
	case FrameOther:
		return "other"
	default:
		return fmt.Sprintf("FrameKind(%d)", int(k))
	}
}

// Frame is one inbound unit of a Connection.
type Frame struct {
	Kind FrameKind
	Text string
}

// Connection is a bidirectional text-message stream.
//
// ReceiveNext must be called from a single goroutine. Send is not safe for
// concurrent use; callers sharing a Connection serialize their sends.
type Connection interface {
	ReceiveNext() (Frame, error)
	Send(text string) error
	Close() error
}

// ConnectionError reports that the underlying stream failed. The connection
// is unusable afterwards.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err is or wraps a *ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
