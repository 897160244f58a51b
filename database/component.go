package database

import (
	"context"
	"fmt"

	"github.com/kbukum/dictation/component"
	"github.com/kbukum/dictation/logger"
)

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Migrator brings the schema up to date on an open database.
type Migrator func(ctx context.Context, db *DB) error

// Component opens the database on Start and runs the migrator when
// auto_migrate is set.
type Component struct {
	cfg     Config
	log     *logger.Logger
	migrate Migrator
	db      *DB
}

func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("database")}
}

func (c *Component) WithMigrator(m Migrator) *Component {
	c.migrate = m
	return c
}

// DB is nil until Start succeeds.
func (c *Component) DB() *DB { return c.db }

func (c *Component) Name() string { return "database" }

func (c *Component) Start(ctx context.Context) error {
	db, err := Open(ctx, c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if c.cfg.AutoMigrate && c.migrate != nil {
		if err := c.migrate(ctx, db); err != nil {
			_ = db.Close()
			return fmt.Errorf("database: migrate: %w", err)
		}
	}
	c.db = db
	return nil
}

func (c *Component) Stop(context.Context) error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if c.db == nil {
		h.Status, h.Message = component.StatusUnhealthy, "not started"
	} else if err := c.db.PingContext(ctx); err != nil {
		h.Status, h.Message = component.StatusUnhealthy, "ping failed: "+err.Error()
	}
	return h
}

func (c *Component) Describe() component.Description {
	mode := "migrations off"
	if c.cfg.AutoMigrate {
		mode = "auto-migrate"
	}
	return component.Description{
		Name:    "Database",
		Type:    "sqlite",
		Details: fmt.Sprintf("%s (%s)", c.cfg.DSN, mode),
	}
}
