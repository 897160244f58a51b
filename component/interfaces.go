package component

import "context"

type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	// StatusUnhealthy turns /health into a 503.
	StatusUnhealthy HealthStatus = "unhealthy"
)

// Health is one entry of the /health components list.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is a piece of the service with a start/stop lifecycle: the
// HTTP server, the note database, redis, audio storage, the speech
// backends and the session orchestrator. The registry starts components in
// registration order and stops them in reverse.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	// Stop must return once ctx is done even if draining is incomplete.
	Stop(ctx context.Context) error
	Health(ctx context.Context) Health
}

// Description is the startup log line for a component.
type Description struct {
	Name    string // defaults to Component.Name()
	Type    string // database, server, redis, storage
	Details string // e.g. "localhost:6379 db=0"
	Port    int
}

// Describable components are listed in the startup summary.
type Describable interface {
	Describe() Description
}
