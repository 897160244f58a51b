package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kbukum/dictation/component"
	"github.com/kbukum/dictation/provider"
)

// asrComponent reports backend reachability on /health and closes the
// provider clients. It is registered before the orchestrator so sessions
// drain before their backends go away.
type asrComponent struct {
	providers []provider.Provider
}

var _ component.Component = (*asrComponent)(nil)

func newASRComponent(providers ...provider.Provider) *asrComponent {
	return &asrComponent{providers: providers}
}

func (c *asrComponent) Name() string { return "asr" }

func (c *asrComponent) Start(context.Context) error { return nil }

func (c *asrComponent) Stop(context.Context) error {
	var errs []error
	for _, p := range c.providers {
		if cl, ok := p.(io.Closer); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Health is degraded rather than unhealthy when a backend is unreachable:
// sessions still connect and report asr_error on their own.
func (c *asrComponent) Health(ctx context.Context) component.Health {
	var down []string
	for _, p := range c.providers {
		if !p.IsAvailable(ctx) {
			down = append(down, p.Name())
		}
	}
	if len(down) > 0 {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusDegraded,
			Message: "unavailable: " + strings.Join(down, ","),
		}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}
