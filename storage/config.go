package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
)

// Config selects and configures the scratch backend.
type Config struct {
	Provider string `mapstructure:"provider"`

	// Local backend root. Defaults to a directory under os.TempDir.
	BasePath string `mapstructure:"base_path"`

	// S3 backend. Endpoint points at an S3 compatible service such as MinIO
	// and implies path-style addressing. Empty keys use the default AWS
	// credential chain.
	Bucket         string `mapstructure:"bucket"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`

	// SweepAfter removes scratch objects older than this on start. Audio
	// left behind by a crash would otherwise stay forever. Zero disables.
	SweepAfter time.Duration `mapstructure:"sweep_after"`
}

func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	if c.BasePath == "" {
		c.BasePath = filepath.Join(os.TempDir(), "dictation-scratch")
	}
	if c.Region == "" {
		c.Region = "us-east-1"
	}
}

func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderLocal:
		if c.BasePath == "" {
			return errors.New("storage: base_path is required for the local provider")
		}
	case ProviderS3:
		if c.Bucket == "" {
			return errors.New("storage: bucket is required for the s3 provider")
		}
		if (c.AccessKey == "") != (c.SecretKey == "") {
			return errors.New("storage: access_key and secret_key must be set together")
		}
	default:
		return fmt.Errorf("storage: unsupported provider %q", c.Provider)
	}
	if c.SweepAfter < 0 {
		return fmt.Errorf("storage: sweep_after must be non-negative (got: %s)", c.SweepAfter)
	}
	return nil
}
