package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Config is the auth section. Only HMAC algorithms are accepted.
type Config struct {
	Secret   string   `yaml:"secret" mapstructure:"secret"`
	Method   string   `yaml:"method" mapstructure:"method"`
	Issuer   string   `yaml:"issuer" mapstructure:"issuer"`
	Audience []string `yaml:"audience" mapstructure:"audience"`

	// AccessTokenTTL is the lifetime of tokens from the token command.
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" mapstructure:"access_token_ttl"`
	// Leeway tolerates clock skew on exp, nbf and iat.
	Leeway time.Duration `yaml:"leeway" mapstructure:"leeway"`
}

var hmacMethods = map[string]*gojwt.SigningMethodHMAC{
	"HS256": gojwt.SigningMethodHS256,
	"HS384": gojwt.SigningMethodHS384,
	"HS512": gojwt.SigningMethodHS512,
}

func (c *Config) ApplyDefaults() {
	if c.Method == "" {
		c.Method = "HS256"
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = 30 * time.Minute
	}
}

func (c *Config) Validate() error {
	if c.Secret == "" {
		return errors.New("jwt: secret is required")
	}
	if _, ok := hmacMethods[c.Method]; !ok {
		return fmt.Errorf("jwt: unsupported signing method: %s", c.Method)
	}
	if c.Leeway < 0 {
		return fmt.Errorf("jwt: leeway must be non-negative (got: %s)", c.Leeway)
	}
	return nil
}
