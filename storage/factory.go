package storage

import (
	"fmt"
	"sync"

	"github.com/kbukum/dictation/logger"
)

// Factory builds a backend. Backend packages register one from init, so
// the binary imports them for side effects.
type Factory func(cfg Config, log *logger.Logger) (Storage, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

func RegisterFactory(provider string, f Factory) {
	factoriesMu.Lock()
	factories[provider] = f
	factoriesMu.Unlock()
}

// New builds the backend named by cfg.Provider.
func New(cfg Config, log *logger.Logger) (Storage, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	factoriesMu.RLock()
	f := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("storage: provider %q is not linked into this binary", cfg.Provider)
	}
	return f(cfg, log)
}
