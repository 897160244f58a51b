package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kbukum/dictation/component"
	"github.com/kbukum/dictation/logger"
)

// healthKey is probed with Stat; it never exists.
const healthKey = ".health"

// Component owns the scratch backend for the component registry.
type Component struct {
	cfg     Config
	log     *logger.Logger
	storage Storage
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("storage")}
}

// Storage is nil until Start.
func (c *Component) Storage() Storage { return c.storage }

func (c *Component) Name() string { return "storage" }

// Start builds the backend and sweeps stale scratch audio. A failed sweep
// is logged, not fatal.
func (c *Component) Start(ctx context.Context) error {
	s, err := New(c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("storage start: %w", err)
	}
	c.storage = s

	if c.cfg.SweepAfter > 0 {
		n, err := Sweep(ctx, s, "", time.Now().Add(-c.cfg.SweepAfter))
		fields := map[string]interface{}{"removed": n}
		if err != nil {
			fields[logger.FieldError] = err.Error()
			c.log.Warn("Scratch sweep incomplete", fields)
		} else if n > 0 {
			c.log.Info("Removed stale scratch audio", fields)
		}
	}
	return nil
}

func (c *Component) Stop(context.Context) error {
	c.storage = nil
	return nil
}

func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if c.storage == nil {
		h.Status, h.Message = component.StatusUnhealthy, "not started"
		return h
	}
	if _, err := c.storage.Stat(ctx, healthKey); err != nil && !errors.Is(err, ErrNotFound) {
		h.Status, h.Message = component.StatusDegraded, "probe failed: "+err.Error()
	}
	return h
}

func (c *Component) Describe() component.Description {
	d := component.Description{Name: "Storage", Type: "storage"}
	switch c.cfg.Provider {
	case ProviderS3:
		d.Details = "s3://" + c.cfg.Bucket
		if c.cfg.Endpoint != "" {
			d.Details += " via " + c.cfg.Endpoint
		}
	default:
		d.Details = "local " + c.cfg.BasePath
	}
	return d
}
