package main

import (
	"fmt"
	"time"

	"github.com/kbukum/dictation/auth/jwt"
	"github.com/kbukum/dictation/config"
	"github.com/kbukum/dictation/database"
	"github.com/kbukum/dictation/dictation"
	grpcx "github.com/kbukum/dictation/grpc"
	"github.com/kbukum/dictation/observability"
	"github.com/kbukum/dictation/oneshot"
	"github.com/kbukum/dictation/redis"
	"github.com/kbukum/dictation/server"
	"github.com/kbukum/dictation/storage"
	"github.com/kbukum/dictation/transcription/awstranscribe"
	"github.com/kbukum/dictation/transcription/google"
	"github.com/kbukum/dictation/transport"
	"github.com/kbukum/dictation/version"
)

const serviceName = "dictation"

// Config is the dictation service configuration, loaded from config.yml,
// .env files and DICTATION_* style environment variables.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Database      database.Config      `yaml:"database" mapstructure:"database"`
	Redis         redis.Config         `yaml:"redis" mapstructure:"redis"`
	Storage       storage.Config       `yaml:"storage" mapstructure:"storage"`
	Auth          jwt.Config           `yaml:"auth" mapstructure:"auth"`
	Transport     transport.Config     `yaml:"transport" mapstructure:"transport"`
	Recognition   RecognitionConfig    `yaml:"recognition" mapstructure:"recognition"`
	OneShot       oneshot.Config       `yaml:"oneshot" mapstructure:"oneshot"`
	GRPC          grpcx.Config         `yaml:"grpc" mapstructure:"grpc"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
	Presence      PresenceConfig       `yaml:"presence" mapstructure:"presence"`
}

// RecognitionConfig is the streaming section plus the backend credentials.
type RecognitionConfig struct {
	dictation.Config `yaml:",inline" mapstructure:",squash"`

	Google google.Config        `yaml:"google" mapstructure:"google"`
	AWS    awstranscribe.Config `yaml:"aws" mapstructure:"aws"`
}

// PresenceConfig controls the Redis session directory. It is used only when
// redis.enabled is set.
type PresenceConfig struct {
	Prefix string        `yaml:"prefix" mapstructure:"prefix"`
	TTL    time.Duration `yaml:"ttl" mapstructure:"ttl"`
	// Instance identifies this process in presence entries. Defaults to the hostname.
	Instance string `yaml:"instance" mapstructure:"instance"`
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	if c.Version == "" {
		c.Version = version.Version
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Transport.ApplyDefaults()
	c.Recognition.ApplyDefaults()
	c.OneShot.ApplyDefaults()
	c.GRPC.ApplyDefaults()
	c.Observability.ApplyDefaults()
	if c.Presence.Prefix == "" {
		c.Presence.Prefix = "dictation:presence"
	}
}

// Validate checks every section. Section errors carry their own prefix.
func (c *Config) Validate() error {
	validators := []func() error{
		c.ServiceConfig.Validate,
		c.Server.Validate,
		c.Database.Validate,
		c.Redis.Validate,
		c.Storage.Validate,
		c.Auth.Validate,
		c.Transport.Validate,
		c.Recognition.Validate,
		c.OneShot.Validate,
		c.GRPC.Validate,
		c.Observability.Validate,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	if c.Presence.TTL < 0 {
		return fmt.Errorf("presence.ttl must be non-negative (got: %s)", c.Presence.TTL)
	}
	return nil
}

// loadConfig reads the configuration. Empty paths fall back to the
// standard search locations.
func loadConfig(configFile, envFile string) (*Config, error) {
	var opts []config.LoaderOption
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if envFile != "" {
		opts = append(opts, config.WithEnvFile(envFile))
	}
	cfg := &Config{}
	if err := config.LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}
