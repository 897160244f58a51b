package transport

import (
	"fmt"
	"time"
)

// Config holds WebSocket settings.
type Config struct {
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	// AllowedOrigins lists accepted Origin headers; "*" or empty accepts all.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = 4096
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = 4096
	}
	if c.MaxMessageBytes == 0 {
		c.MaxMessageBytes = 1 << 20
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxMessageBytes < 1024 {
		return fmt.Errorf("transport: max_message_bytes must be at least 1024, got %d", c.MaxMessageBytes)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("transport: write_timeout must be positive")
	}
	return nil
}
