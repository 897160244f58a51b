package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/dictation/component"
	"github.com/kbukum/dictation/logger"
	"github.com/kbukum/dictation/resilience"
)

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component owns the presence connection. cmd registers it only when
// redis.enabled is set.
type Component struct {
	cfg    Config
	log    *logger.Logger
	client *Client
}

func NewComponent(cfg Config, log *logger.Logger) *Component {
	return &Component{cfg: cfg, log: log.WithComponent("redis")}
}

// Client is nil until Start succeeds.
func (c *Component) Client() *Client { return c.client }

func (c *Component) Name() string { return "redis" }

// Start dials and pings, retrying a server that is still coming up. Startup
// fails if it never answers.
func (c *Component) Start(ctx context.Context) error {
	client, err := New(c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		c.log.Warn("Redis not reachable yet", map[string]interface{}{
			logger.FieldError: err.Error(),
			"attempt":         attempt,
			"retry_in":        wait.String(),
		})
	}
	if err := resilience.RetryFunc(ctx, retry, func() error { return client.Ping(ctx) }); err != nil {
		_ = client.Close()
		return err
	}
	c.client = client
	return nil
}

func (c *Component) Stop(context.Context) error {
	return c.client.Close()
}

// Health degrades on a failed ping instead of going unhealthy: presence
// falls back to this process and dictation carries on.
func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if c.client == nil {
		h.Status, h.Message = component.StatusUnhealthy, "not started"
	} else if !c.client.IsAvailable(ctx) {
		h.Status, h.Message = component.StatusDegraded, "ping failed"
	}
	return h
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Presence",
		Type:    "redis",
		Details: fmt.Sprintf("%s db=%d", c.cfg.Addr, c.cfg.DB),
	}
}
