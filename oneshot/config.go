package oneshot

import (
	"fmt"
	"time"
)

// Config configures the upload transcription path.
type Config struct {
	// Provider names the one-shot transcriber: google or whisper.
	Provider string `mapstructure:"provider"`
	// FFmpegPath is the transcoder binary. A bare name is looked up on PATH.
	FFmpegPath        string        `mapstructure:"ffmpeg_path"`
	SampleRateHz      int           `mapstructure:"sample_rate_hz"`
	TranscodeTimeout  time.Duration `mapstructure:"transcode_timeout"`
	TranscribeTimeout time.Duration `mapstructure:"transcribe_timeout"`
	// ScratchPrefix is the storage key prefix for staged uploads.
	ScratchPrefix  string `mapstructure:"scratch_prefix"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`

	// Breaker settings for the transcriber.
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`

	Whisper WhisperConfig `mapstructure:"whisper"`
}

// WhisperConfig points at a faster-whisper HTTP sidecar.
type WhisperConfig struct {
	URL         string        `mapstructure:"url"`
	Model       string        `mapstructure:"model"`
	Language    string        `mapstructure:"language"`
	Device      string        `mapstructure:"device"`
	ComputeType string        `mapstructure:"compute_type"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "google"
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.SampleRateHz == 0 {
		c.SampleRateHz = 16000
	}
	if c.TranscodeTimeout == 0 {
		c.TranscodeTimeout = 2 * time.Minute
	}
	if c.TranscribeTimeout == 0 {
		c.TranscribeTimeout = 5 * time.Minute
	}
	if c.ScratchPrefix == "" {
		c.ScratchPrefix = "uploads"
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = 50 << 20
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerTimeout == 0 {
		c.BreakerTimeout = 30 * time.Second
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Provider {
	case "google", "whisper":
	default:
		return fmt.Errorf("oneshot: unknown provider %q (want google or whisper)", c.Provider)
	}
	if c.SampleRateHz < 8000 || c.SampleRateHz > 48000 {
		return fmt.Errorf("oneshot: sample_rate_hz must be between 8000 and 48000, got %d", c.SampleRateHz)
	}
	if c.MaxUploadBytes < 1 {
		return fmt.Errorf("oneshot: max_upload_bytes must be positive")
	}
	if c.Provider == "whisper" && c.Whisper.URL == "" {
		return fmt.Errorf("oneshot: whisper.url is required for the whisper provider")
	}
	return nil
}
