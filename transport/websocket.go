package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Upgrader turns HTTP requests into WebSocket handshakes.
type Upgrader struct {
	cfg      Config
	upgrader websocket.Upgrader
}

// NewUpgrader builds an Upgrader from cfg.
func NewUpgrader(cfg Config) *Upgrader {
	cfg.ApplyDefaults()
	u := &Upgrader{cfg: cfg}
	u.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     u.checkOrigin,
	}
	return u
}

func (u *Upgrader) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(u.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range u.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Handshake wraps a pending upgrade. Nothing is written to w until Accept or
// Reject is called.
func (u *Upgrader) Handshake(w http.ResponseWriter, r *http.Request) *WSHandshake {
	return &WSHandshake{u: u, w: w, r: r}
}

// WSHandshake implements Handshake on gorilla/websocket.
type WSHandshake struct {
	u    *Upgrader
	w    http.ResponseWriter
	r    *http.Request
	done bool
}

// Accept upgrades the connection.
func (h *WSHandshake) Accept() (Conn, error) {
	if h.done {
		return nil, errors.New("transport: handshake already completed")
	}
	h.done = true
	ws, err := h.u.upgrader.Upgrade(h.w, h.r, nil)
	if err != nil {
		return nil, err
	}
	ws.SetReadLimit(h.u.cfg.MaxMessageBytes)
	return &WSConn{ws: ws, writeTimeout: h.u.cfg.WriteTimeout}, nil
}

// Reject upgrades and immediately closes with code and reason, so browser
// clients can read the reason from the close event.
func (h *WSHandshake) Reject(code int, reason string) error {
	conn, err := h.Accept()
	if err != nil {
		return err
	}
	return conn.Close(code, reason)
}

// WSConn implements Conn on a gorilla/websocket connection.
type WSConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Receive reads the next data frame.
func (c *WSConn) Receive(ctx context.Context) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	// Unblock the pending read when ctx is done; gorilla has no ctx-aware read.
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	kind, data, err := c.ws.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Message{}, ctxErr
		}
		return Message{}, classifyReadError(err)
	}
	switch kind {
	case websocket.BinaryMessage:
		return Message{Kind: Binary, Data: data}, nil
	default:
		return Message{Kind: Text, Data: data}, nil
	}
}

func classifyReadError(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) || errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return errors.Join(ErrDisconnected, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && !netErr.Timeout() {
		return errors.Join(ErrDisconnected, err)
	}
	return err
}

// SendJSON writes v as a JSON text frame.
func (c *WSConn) SendJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteJSON(v)
}

// Close sends a close frame and closes the underlying connection.
func (c *WSConn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(code, reason)
		err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
		c.writeMu.Unlock()
		if errors.Is(err, websocket.ErrCloseSent) {
			err = nil
		}
		if cerr := c.ws.Close(); err == nil {
			err = cerr
		}
		c.closeErr = err
	})
	return c.closeErr
}

// RemoteAddr returns the peer address.
func (c *WSConn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}
