package provider

import "context"

// Provider is a pluggable speech backend.
type Provider interface {
	Name() string
	// IsAvailable reports whether the backend answers right now. It feeds
	// the health endpoint and must not block for long.
	IsAvailable(ctx context.Context) bool
}

// Factory builds a backend from its settings section. Settings are decoded
// with DecodeSettings.
type Factory[T Provider] func(settings map[string]any) (T, error)
