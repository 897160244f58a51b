package provider

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Registry maps backend names to factories. The service registers every
// backend it was built with and builds the one named in configuration.
type Registry[T Provider] struct {
	mu        sync.RWMutex
	factories map[string]Factory[T]
}

func NewRegistry[T Provider]() *Registry[T] {
	return &Registry[T]{factories: make(map[string]Factory[T])}
}

// Register adds or replaces the factory for name.
func (r *Registry[T]) Register(name string, factory Factory[T]) {
	r.mu.Lock()
	r.factories[name] = factory
	r.mu.Unlock()
}

// Build runs the named factory with settings. Every call builds a new
// instance; callers own its lifetime.
func (r *Registry[T]) Build(name string, settings map[string]any) (T, error) {
	r.mu.RLock()
	factory := r.factories[name]
	r.mu.RUnlock()
	if factory == nil {
		var zero T
		return zero, fmt.Errorf("unknown backend %q (registered: %v)", name, r.Names())
	}
	return factory(settings)
}

// Names returns the registered backend names in order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}
