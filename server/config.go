package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/kbukum/dictation/server/middleware"
)

// Config is the server section. WriteTimeout defaults to 0 (off) because
// uploads and dictation sockets outlive any fixed write deadline.
type Config struct {
	Host            string                `yaml:"host" mapstructure:"host"`
	Port            int                   `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration         `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration         `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration         `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration         `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	MaxUploadMB     int64                 `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	CORS            middleware.CORSConfig `yaml:"cors" mapstructure:"cors"`
}

func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 100
	}
	c.CORS.ApplyDefaults()
}

func (c *Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("server.port must be between 0 and 65535 (got: %d)", c.Port)
	case c.ReadTimeout < 0, c.WriteTimeout < 0, c.IdleTimeout < 0, c.ShutdownTimeout < 0:
		return errors.New("server timeouts must be non-negative")
	case c.MaxUploadMB < 0:
		return fmt.Errorf("server.max_upload_mb must be non-negative (got: %d)", c.MaxUploadMB)
	}
	return nil
}

// Addr is the host:port the server binds.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
