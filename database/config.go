package database

import (
	"errors"
	"fmt"
	"time"
)

// Config is the note database section. Only SQLite is supported; the DSN is
// a file path or a SQLite URI.
type Config struct {
	Enabled     bool   `mapstructure:"enabled"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`

	// SQLite serializes writers, so the pool stays small.
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	// ConnectAttempts bounds the open-and-ping loop on start.
	ConnectAttempts int `mapstructure:"connect_attempts"`

	// SlowQuery is the latency above which a statement is logged at warn.
	SlowQuery time.Duration `mapstructure:"slow_query"`
	LogLevel  string        `mapstructure:"log_level"`
}

func (c *Config) ApplyDefaults() {
	if c.DSN == "" {
		c.DSN = "dictation.db"
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 1
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 1
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = 3
	}
	if c.SlowQuery <= 0 {
		c.SlowQuery = 200 * time.Millisecond
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
}

func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.DSN == "" {
		return errors.New("database: dsn is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("database: max_idle_conns (%d) exceeds max_open_conns (%d)", c.MaxIdleConns, c.MaxOpenConns)
	}
	if _, ok := gormLevels[c.LogLevel]; !ok && c.LogLevel != "" {
		return fmt.Errorf("database: unknown log_level %q", c.LogLevel)
	}
	return nil
}
