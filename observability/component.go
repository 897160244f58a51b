package observability

import (
	"context"
	"errors"
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/dictation/component"
	"github.com/kbukum/dictation/logger"
)

var _ component.Component = (*Component)(nil)

// Component owns the tracer and meter providers. When disabled it leaves
// the otel no-op globals in place.
type Component struct {
	cfg         Config
	service     string
	version     string
	environment string

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// NewComponent creates the observability lifecycle component.
func NewComponent(cfg Config, service, version, environment string) *Component {
	return &Component{cfg: cfg, service: service, version: version, environment: environment}
}

// Name returns the component name.
func (c *Component) Name() string { return "observability" }

// Start installs the exporters when enabled.
func (c *Component) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}
	tp, err := InitTracer(ctx, c.cfg, c.service, c.version, c.environment)
	if err != nil {
		return err
	}
	mp, err := InitMeter(ctx, c.cfg, c.service, c.version, c.environment)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return err
	}
	c.tp, c.mp = tp, mp

	logger.Info("telemetry exporters initialized", logger.Fields(
		"endpoint", c.cfg.Endpoint,
		"sample_rate", c.cfg.SampleRate,
	))
	return nil
}

// Stop flushes and shuts down the providers.
func (c *Component) Stop(ctx context.Context) error {
	var errs []error
	if c.tp != nil {
		if err := c.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if c.mp != nil {
		if err := c.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Health reports healthy; exporters fail independently of the service.
func (c *Component) Health(ctx context.Context) component.Health {
	msg := "disabled"
	if c.cfg.Enabled {
		msg = c.cfg.Endpoint
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy, Message: msg}
}
