package session

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/kbukum/dictation/errors"
	"github.com/kbukum/dictation/logger"
	"github.com/kbukum/dictation/transport"
)

// ReasonSessionActive is the close reason for a duplicate session id.
const ReasonSessionActive = "Session already active"

const directoryTimeout = 2 * time.Second

// Registry maps session ids to live connections. It is safe for concurrent
// use by every session's orchestrator.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]transport.Conn // nil value: handshake in progress

	dir      Directory
	instance string
	log      *logger.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDirectory announces registered sessions to a shared presence directory.
func WithDirectory(dir Directory, instance string) RegistryOption {
	return func(r *Registry) {
		r.dir = dir
		r.instance = instance
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		conns: make(map[string]transport.Conn),
		log:   log.WithComponent("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register accepts hs and binds the connection to id. A second connection
// for a live id is rejected with a policy-violation close and a
// SESSION_CONFLICT error.
func (r *Registry) Register(ctx context.Context, id string, hs transport.Handshake, p Presence) (transport.Conn, error) {
	r.mu.Lock()
	if _, exists := r.conns[id]; exists {
		r.mu.Unlock()
		r.log.Warn("Rejecting duplicate session", map[string]interface{}{logger.FieldSessionID: id})
		_ = hs.Reject(transport.ClosePolicyViolation, ReasonSessionActive)
		return nil, apperrors.SessionConflict(id)
	}
	r.conns[id] = nil
	r.mu.Unlock()

	conn, err := hs.Accept()
	if err != nil {
		r.mu.Lock()
		delete(r.conns, id)
		r.mu.Unlock()
		return nil, err
	}

	r.mu.Lock()
	r.conns[id] = conn
	count := len(r.conns)
	r.mu.Unlock()

	r.log.Info("Session registered", map[string]interface{}{
		logger.FieldSessionID: id,
		"active_sessions":     count,
	})
	r.announce(ctx, id, p)
	return conn, nil
}

// Unregister removes id. Removing an unknown id is a no-op.
func (r *Registry) Unregister(ctx context.Context, id string) {
	r.remove(ctx, id, nil)
}

// remove deletes id, but only while it still maps to conn when conn is set.
func (r *Registry) remove(ctx context.Context, id string, conn transport.Conn) {
	r.mu.Lock()
	cur, existed := r.conns[id]
	if !existed || (conn != nil && cur != conn) {
		r.mu.Unlock()
		return
	}
	delete(r.conns, id)
	count := len(r.conns)
	r.mu.Unlock()

	r.log.Info("Session unregistered", map[string]interface{}{
		logger.FieldSessionID: id,
		"active_sessions":     count,
	})
	r.withdraw(ctx, id)
}

// Send writes msg to the session's connection. A missing session or a failed
// write is logged and reported as false, never returned as an error.
func (r *Registry) Send(id string, msg any) bool {
	r.mu.RLock()
	conn := r.conns[id]
	r.mu.RUnlock()

	if conn == nil {
		r.log.Debug("Send skipped, session not registered", map[string]interface{}{logger.FieldSessionID: id})
		return false
	}
	return r.write(id, conn, msg)
}

func (r *Registry) write(id string, conn transport.Conn, msg any) bool {
	if err := conn.SendJSON(msg); err != nil {
		r.log.Warn("Send failed", map[string]interface{}{
			logger.FieldSessionID: id,
			logger.FieldError:     err.Error(),
		})
		return false
	}
	return true
}

// Broadcast sends msg to every accepted session and unregisters those whose
// write failed. Sessions still in their handshake are skipped. It returns
// the number of successful sends.
func (r *Registry) Broadcast(ctx context.Context, msg any) int {
	type target struct {
		id   string
		conn transport.Conn
	}
	r.mu.RLock()
	targets := make([]target, 0, len(r.conns))
	for id, conn := range r.conns {
		if conn != nil {
			targets = append(targets, target{id, conn})
		}
	}
	r.mu.RUnlock()

	sent := 0
	for _, t := range targets {
		if r.write(t.id, t.conn, msg) {
			sent++
			continue
		}
		r.remove(ctx, t.id, t.conn)
	}
	return sent
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// IDs returns the registered session ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Directory returns the presence directory, or nil.
func (r *Registry) Directory() Directory {
	return r.dir
}

func (r *Registry) announce(ctx context.Context, id string, p Presence) {
	if r.dir == nil {
		return
	}
	p.SessionID = id
	p.Instance = r.instance
	if p.StartedAt.IsZero() {
		p.StartedAt = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), directoryTimeout)
	defer cancel()
	if err := r.dir.Announce(ctx, p); err != nil {
		r.log.Warn("Presence announce failed", map[string]interface{}{
			logger.FieldSessionID: id,
			logger.FieldError:     err.Error(),
		})
	}
}

func (r *Registry) withdraw(ctx context.Context, id string) {
	if r.dir == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), directoryTimeout)
	defer cancel()
	if err := r.dir.Withdraw(ctx, id); err != nil {
		r.log.Warn("Presence withdraw failed", map[string]interface{}{
			logger.FieldSessionID: id,
			logger.FieldError:     err.Error(),
		})
	}
}
