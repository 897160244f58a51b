package grpc

import (
	"fmt"
	"time"
)

const (
	defaultMaxRecvMsgSize   = 4 << 20
	defaultMaxSendMsgSize   = 32 << 20 // one-shot audio goes inline in Recognize
	defaultKeepaliveTime    = 30 * time.Second
	defaultKeepaliveTimeout = 10 * time.Second
	defaultCallTimeout      = 2 * time.Minute

	// Servers answer pings more frequent than this with GOAWAY.
	minKeepaliveTime = 10 * time.Second
)

// Config is the transport around the speech backend client connections.
// Endpoint and credentials live in the backend section.
type Config struct {
	MaxRecvMsgSize int `mapstructure:"max_recv_msg_size"`
	MaxSendMsgSize int `mapstructure:"max_send_msg_size"`

	KeepaliveTime    time.Duration `mapstructure:"keepalive_time"`
	KeepaliveTimeout time.Duration `mapstructure:"keepalive_timeout"`
	// KeepaliveIdle keeps pinging with no open stream, so the first
	// session after a quiet period does not hit a dead connection.
	KeepaliveIdle bool `mapstructure:"keepalive_idle"`

	// CallTimeout applies to unary calls without a deadline. Recognition
	// streams run for the length of a dictation and are never cut.
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	Logging     bool          `mapstructure:"logging"`
}

func (c *Config) ApplyDefaults() {
	if c.MaxRecvMsgSize == 0 {
		c.MaxRecvMsgSize = defaultMaxRecvMsgSize
	}
	if c.MaxSendMsgSize == 0 {
		c.MaxSendMsgSize = defaultMaxSendMsgSize
	}
	if c.KeepaliveTime == 0 {
		c.KeepaliveTime = defaultKeepaliveTime
	}
	if c.KeepaliveTimeout == 0 {
		c.KeepaliveTimeout = defaultKeepaliveTimeout
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = defaultCallTimeout
	}
}

func (c *Config) Validate() error {
	switch {
	case c.MaxRecvMsgSize <= 0 || c.MaxSendMsgSize <= 0:
		return fmt.Errorf("grpc: message size limits must be positive (recv=%d send=%d)", c.MaxRecvMsgSize, c.MaxSendMsgSize)
	case c.KeepaliveTime < minKeepaliveTime:
		return fmt.Errorf("grpc: keepalive_time must be at least %s (got: %s)", minKeepaliveTime, c.KeepaliveTime)
	case c.CallTimeout < 0:
		return fmt.Errorf("grpc: call_timeout must be non-negative (got: %s)", c.CallTimeout)
	}
	return nil
}
