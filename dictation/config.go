package dictation

import (
	"fmt"
	"time"

	"github.com/kbukum/dictation/session"
	"github.com/kbukum/dictation/transcription"
)

// Config holds the streaming dictation settings.
type Config struct {
	// Provider names the streaming backend: "google" or "aws".
	Provider string `mapstructure:"provider"`
	// Stream is sent as the first message of every recognition stream.
	Stream transcription.StreamConfig `mapstructure:"stream"`
	// IdleTimeout bounds one wait for buffered audio. Silence is not an error.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	// StreamDeadline bounds one recognition stream.
	StreamDeadline time.Duration `mapstructure:"stream_deadline"`
	// BufferCapacity is the per-session audio buffer size in chunks.
	BufferCapacity int `mapstructure:"buffer_capacity"`
	// SaveTimeout bounds note persistence including retries.
	SaveTimeout time.Duration `mapstructure:"save_timeout"`
	// SaveAttempts is the number of persistence attempts for transient errors.
	SaveAttempts int `mapstructure:"save_attempts"`
	// MaxSessions caps concurrent sessions on this instance.
	MaxSessions int `mapstructure:"max_sessions"`
	// AdmissionWait is how long a new session waits for a free slot.
	AdmissionWait time.Duration `mapstructure:"admission_wait"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "google"
	}
	c.Stream.ApplyDefaults()
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 5 * time.Second
	}
	if c.StreamDeadline == 0 {
		c.StreamDeadline = 5 * time.Minute
	}
	if c.BufferCapacity == 0 {
		c.BufferCapacity = session.DefaultBufferCapacity
	}
	if c.SaveTimeout == 0 {
		c.SaveTimeout = 30 * time.Second
	}
	if c.SaveAttempts == 0 {
		c.SaveAttempts = 3
	}
	if c.MaxSessions == 0 {
		c.MaxSessions = 100
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Provider {
	case "google", "aws":
	default:
		return fmt.Errorf("recognition: unknown provider %q (want google or aws)", c.Provider)
	}
	if c.Stream.SampleRateHz < 8000 || c.Stream.SampleRateHz > 48000 {
		return fmt.Errorf("recognition: sample_rate_hz must be between 8000 and 48000, got %d", c.Stream.SampleRateHz)
	}
	if c.Stream.MinSpeakers > c.Stream.MaxSpeakers {
		return fmt.Errorf("recognition: min_speakers (%d) exceeds max_speakers (%d)", c.Stream.MinSpeakers, c.Stream.MaxSpeakers)
	}
	if c.IdleTimeout <= 0 || c.StreamDeadline <= 0 || c.SaveTimeout <= 0 {
		return fmt.Errorf("recognition: timeouts must be positive")
	}
	if c.BufferCapacity < 1 {
		return fmt.Errorf("recognition: buffer_capacity must be positive")
	}
	if c.MaxSessions < 1 {
		return fmt.Errorf("recognition: max_sessions must be positive")
	}
	return nil
}
