package component

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kbukum/dictation/logger"
)

// DefaultStopTimeout bounds each component's Stop call.
const DefaultStopTimeout = 10 * time.Second

type entry struct {
	c       Component
	started bool
}

// Registry starts components in registration order and stops them in
// reverse. Register dependencies first: the database before the stores
// that use it, the orchestrator before the server that feeds it.
type Registry struct {
	// lifecycle serializes StartAll and StopAll. mu only guards entries so
	// /health stays responsive while sessions drain.
	lifecycle   sync.Mutex
	mu          sync.RWMutex
	entries     []*entry
	stopTimeout time.Duration
}

func NewRegistry() *Registry {
	return &Registry{stopTimeout: DefaultStopTimeout}
}

// SetStopTimeout changes the per-component stop budget. Non-positive values
// are ignored.
func (r *Registry) SetStopTimeout(d time.Duration) {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if d > 0 {
		r.stopTimeout = d
	}
}

// Register appends c. Names must be unique.
func (r *Registry) Register(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := c.Name()
	if slices.ContainsFunc(r.entries, func(e *entry) bool { return e.c.Name() == name }) {
		return fmt.Errorf("component %s already registered", name)
	}
	r.entries = append(r.entries, &entry{c: c})
	return nil
}

func (r *Registry) snapshot() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.entries)
}

// StartAll starts every component not started yet, so a second call picks
// up components registered since the first. It stops at the first failure;
// what did start stays started for StopAll.
func (r *Registry) StartAll(ctx context.Context) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	for _, e := range r.snapshot() {
		if e.started {
			continue
		}
		name := e.c.Name()
		if err := e.c.Start(ctx); err != nil {
			logger.Error("Component failed to start", map[string]interface{}{
				logger.FieldComponent: name,
				logger.FieldError:     err.Error(),
			})
			return fmt.Errorf("start %s: %w", name, err)
		}
		e.started = true
		logger.Info("Component started", describe(e.c))
	}
	return nil
}

func describe(c Component) map[string]interface{} {
	fields := map[string]interface{}{logger.FieldComponent: c.Name()}
	if d, ok := c.(Describable); ok {
		desc := d.Describe()
		fields["type"] = desc.Type
		if desc.Details != "" {
			fields["details"] = desc.Details
		}
		if desc.Port > 0 {
			fields["port"] = desc.Port
		}
	}
	return fields
}

// StopAll stops started components in reverse order, each within the stop
// timeout, and joins their errors. Calling it twice is a no-op.
func (r *Registry) StopAll(ctx context.Context) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	entries := r.snapshot()
	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if !e.started {
			continue
		}
		name := e.c.Name()
		stopCtx, cancel := context.WithTimeout(ctx, r.stopTimeout)
		err := e.c.Stop(stopCtx)
		cancel()
		e.started = false
		if err != nil {
			logger.Error("Component failed to stop", map[string]interface{}{
				logger.FieldComponent: name,
				logger.FieldError:     err.Error(),
			})
			errs = append(errs, fmt.Errorf("stop %s: %w", name, err))
			continue
		}
		logger.Debug("Component stopped", map[string]interface{}{logger.FieldComponent: name})
	}
	return errors.Join(errs...)
}

// HealthAll asks every component for its health, in registration order.
// Entries without a name get the component's.
func (r *Registry) HealthAll(ctx context.Context) []Health {
	entries := r.snapshot()
	out := make([]Health, 0, len(entries))
	for _, e := range entries {
		h := e.c.Health(ctx)
		if h.Name == "" {
			h.Name = e.c.Name()
		}
		out = append(out, h)
	}
	return out
}

// Overall folds component health into one status: unhealthy wins over
// degraded, degraded over healthy.
func Overall(items []Health) HealthStatus {
	status := StatusHealthy
	for _, h := range items {
		switch h.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}
