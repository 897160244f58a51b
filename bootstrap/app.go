package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kbukum/dictation/component"
	"github.com/kbukum/dictation/config"
	"github.com/kbukum/dictation/logger"
)

// Config is satisfied by any config struct embedding config.ServiceConfig
// that keeps ApplyDefaults and Validate on its pointer receiver.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}

// ConfigureFunc wires components that need started infrastructure, such as
// stores on top of an open database.
type ConfigureFunc[C Config] func(ctx context.Context, app *App[C]) error

// App runs one command of a service binary.
//
//	app, err := bootstrap.NewApp(cfg)
//	app.RegisterComponent(database.NewComponent(cfg.Database, app.Logger))
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
//	    return a.RegisterComponent(server.NewComponent(srv))
//	})
//	return app.Run(ctx)
type App[C Config] struct {
	Name       string
	Version    string
	Cfg        C
	Components *component.Registry
	Logger     *logger.Logger

	gracefulTimeout time.Duration
	configure       []ConfigureFunc[C]
}

// NewApp applies defaults, validates cfg and sets up the global logger.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	o := options{gracefulTimeout: defaultGracefulTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	base := cfg.GetServiceConfig()
	app := &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		Components:      component.NewRegistry(),
		Logger:          o.logger,
		gracefulTimeout: o.gracefulTimeout,
	}
	if app.Logger == nil {
		logger.Init(&base.Logging)
		app.Logger = logger.GetGlobalLogger()
	} else {
		logger.SetGlobalLogger(app.Logger)
	}
	return app, nil
}

func (a *App[C]) RegisterComponent(c component.Component) error {
	return a.Components.Register(c)
}

// OnConfigure adds fn to run once the registered components are up.
// Components fn registers start after every callback has returned.
func (a *App[C]) OnConfigure(fn ConfigureFunc[C]) {
	a.configure = append(a.configure, fn)
}

// Run starts the service and blocks until SIGINT, SIGTERM or ctx is done.
func (a *App[C]) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.start(ctx); err != nil {
		return errors.Join(err, a.stop())
	}
	a.Logger.Info("Ready, waiting for shutdown signal")
	<-ctx.Done()
	a.Logger.Info("Shutting down", map[string]interface{}{"cause": context.Cause(ctx).Error()})
	return a.stop()
}

// RunTask starts the service, runs task and stops. The task context is
// canceled on SIGINT or SIGTERM. A task error wins over a stop error.
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.start(ctx); err != nil {
		return errors.Join(err, a.stop())
	}
	taskErr := task(ctx)
	stopErr := a.stop()
	if taskErr != nil {
		return taskErr
	}
	return stopErr
}

func (a *App[C]) start(ctx context.Context) error {
	begin := time.Now()
	a.Logger.Info("Starting", map[string]interface{}{"name": a.Name, "version": a.Version})

	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	for _, fn := range a.configure {
		if err := fn(ctx, a); err != nil {
			return fmt.Errorf("configure: %w", err)
		}
	}
	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("start configured components: %w", err)
	}

	if down := a.unhealthy(ctx); len(down) > 0 {
		a.Logger.Warn("Started with unhealthy components", map[string]interface{}{
			"components": strings.Join(down, ", "),
		})
	}
	a.Logger.Info("Startup complete", logger.DurationFields("startup", time.Since(begin)))
	return nil
}

// unhealthy lists components not reporting healthy as name=status(message).
func (a *App[C]) unhealthy(ctx context.Context) []string {
	var out []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status == component.StatusHealthy {
			continue
		}
		s := h.Name + "=" + string(h.Status)
		if h.Message != "" {
			s += "(" + h.Message + ")"
		}
		out = append(out, s)
	}
	return out
}

// stop runs with its own deadline: the run context is usually already
// canceled by the time shutdown begins.
func (a *App[C]) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	err := a.Components.StopAll(ctx)
	if err != nil {
		a.Logger.Error("Shutdown completed with errors", map[string]interface{}{logger.FieldError: err.Error()})
	} else {
		a.Logger.Info("Shutdown complete")
	}
	return err
}
