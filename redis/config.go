package redis

import (
	"fmt"
	"time"
)

// Config configures the optional Redis connection behind the cluster-wide
// session presence directory. Sessions never depend on it: when Enabled is
// false presence stays local to the process.
type Config struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize   int `mapstructure:"pool_size"`
	MaxRetries int `mapstructure:"max_retries"`

	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	// IOTimeout bounds each read and write. Presence updates run on session
	// open and close, so this stays short.
	IOTimeout time.Duration `mapstructure:"io_timeout"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 2 * time.Second
	}
	if c.IOTimeout == 0 {
		c.IOTimeout = 500 * time.Millisecond
	}
}

// Validate checks an enabled configuration. A disabled one is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("redis.pool_size must be > 0 (got: %d)", c.PoolSize)
	}
	if c.DialTimeout < 0 || c.IOTimeout < 0 {
		return fmt.Errorf("redis timeouts must be non-negative")
	}
	return nil
}
