package transport

import (
	"context"
	"errors"
)

// Close codes used by the dictation socket.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
	CloseInternalError   = 1011
	CloseTryAgainLater   = 1013
)

// ErrDisconnected is returned by Receive once the peer has gone away.
var ErrDisconnected = errors.New("transport: peer disconnected")

// Kind tells binary and text frames apart.
type Kind int

const (
	Binary Kind = iota + 1
	Text
)

func (k Kind) String() string {
	switch k {
	case Binary:
		return "binary"
	case Text:
		return "text"
	default:
		return "unknown"
	}
}

// Message is one inbound frame, resolved once at the boundary.
type Message struct {
	Kind Kind
	Data []byte
}

// Conn is an accepted bidirectional connection. SendJSON and Close are safe
// for concurrent use; Receive is called from a single goroutine.
type Conn interface {
	// Receive blocks for the next frame. It returns ErrDisconnected when the
	// peer closes and ctx.Err() when ctx is done first.
	Receive(ctx context.Context) (Message, error)
	// SendJSON writes v as one JSON text frame.
	SendJSON(v any) error
	// Close sends a close frame with code and reason and releases the
	// connection. Calls after the first are no-ops.
	Close(code int, reason string) error
}

// Handshake is a connection that has not been accepted yet.
type Handshake interface {
	// Accept completes the handshake.
	Accept() (Conn, error)
	// Reject refuses the connection with a close code and a reason the
	// client can read.
	Reject(code int, reason string) error
}
