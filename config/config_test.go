package config

import (
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/kbukum/dictation/logger"
)

func TestServiceConfigApplyDefaults(t *testing.T) {
	cfg := ServiceConfig{Name: "dictation"}
	cfg.ApplyDefaults()
	if cfg.Environment != EnvDevelopment {
		t.Errorf("expected 'development', got %q", cfg.Environment)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("development logging = %s/%s, want debug/console", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Logging.ServiceName != "dictation" {
		t.Errorf("expected logging service name to follow config name, got %q", cfg.Logging.ServiceName)
	}

	prod := ServiceConfig{Name: "dictation", Environment: EnvProduction}
	prod.ApplyDefaults()
	if !prod.IsProduction() {
		t.Error("expected IsProduction to be true")
	}
	if prod.Logging.Level != "info" || prod.Logging.Format != "json" {
		t.Errorf("production logging = %s/%s, want info/json", prod.Logging.Level, prod.Logging.Format)
	}

	explicit := ServiceConfig{Name: "dictation", Environment: EnvProduction, Logging: logger.Config{Format: "pretty"}}
	explicit.ApplyDefaults()
	if explicit.Logging.Format != "pretty" {
		t.Errorf("explicit format overridden: %s", explicit.Logging.Format)
	}
}

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr string
	}{
		{"valid", ServiceConfig{Name: "svc", Environment: "staging"}, ""},
		{"missing name", ServiceConfig{Environment: "production"}, "config.name is required"},
		{"invalid environment", ServiceConfig{Name: "svc", Environment: "qa"}, "config.environment must be one of"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.Logging.ApplyDefaults()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Session       struct {
		IdleTimeoutMS int `mapstructure:"idle_timeout_ms"`
	} `mapstructure:"session"`
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")

	yamlContent := `
name: dictation
environment: staging
version: "1.0.0"
session:
  idle_timeout_ms: 250
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var cfg testConfig
	if err := LoadConfig("dictation", &cfg, WithConfigFile(configPath), WithEnvFile(filepath.Join(dir, "missing.env"))); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "dictation" {
		t.Errorf("expected name 'dictation', got %q", cfg.Name)
	}
	if cfg.Environment != "staging" {
		t.Errorf("expected environment 'staging', got %q", cfg.Environment)
	}
	if cfg.Session.IdleTimeoutMS != 250 {
		t.Errorf("expected idle timeout 250, got %d", cfg.Session.IdleTimeoutMS)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(configPath, []byte("name: dictation\nsession:\n  idle_timeout_ms: 250\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("SESSION_IDLE_TIMEOUT_MS", "900")

	var cfg testConfig
	if err := LoadConfig("dictation", &cfg, WithConfigFile(configPath), WithEnvFile(filepath.Join(dir, "missing.env"))); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Session.IdleTimeoutMS != 900 {
		t.Errorf("expected env override 900, got %d", cfg.Session.IdleTimeoutMS)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("nonexistent-service", &cfg, WithConfigFile("/nonexistent/path.yml"), WithEnvFile("/nonexistent/.env"))
	if err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
}

func TestLoadConfigPrefixedEnvWins(t *testing.T) {
	t.Setenv("SESSION_IDLE_TIMEOUT_MS", "900")
	t.Setenv("DICTATION_SESSION_IDLE_TIMEOUT_MS", "1200")
	t.Setenv("DICTATION_ENVIRONMENT", "production")

	var cfg testConfig
	if err := LoadConfig("dictation", &cfg, WithConfigFile("/nonexistent/config.yml"), WithEnvFile("/nonexistent/.env")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Session.IdleTimeoutMS != 1200 {
		t.Errorf("expected prefixed override 1200, got %d", cfg.Session.IdleTimeoutMS)
	}
	if cfg.Environment != "production" {
		t.Errorf("expected squashed field from env, got %q", cfg.Environment)
	}
}

func TestLoadConfigSearchesServicePaths(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/dictation/.env": true,
		"./.env":               true,
	}}
	var cfg testConfig
	if err := LoadConfig("dictation", &cfg, WithFileSystem(fs)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !slices.Equal(fs.loaded, []string{"./cmd/dictation/.env"}) {
		t.Errorf("loaded env files = %v", fs.loaded)
	}
}

type mockFS struct {
	files  map[string]bool
	loaded []string
}

func (m *mockFS) Exists(path string) bool { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error {
	m.loaded = append(m.loaded, path)
	return nil
}

func TestConfigKeys(t *testing.T) {
	keys := configKeys(reflect.TypeOf(&testConfig{}), "")
	for _, want := range []string{"name", "environment", "logging.level", "session.idle_timeout_ms"} {
		if !slices.Contains(keys, want) {
			t.Errorf("expected key %q in %v", want, keys)
		}
	}
	if envName("session.idle_timeout_ms") != "SESSION_IDLE_TIMEOUT_MS" {
		t.Errorf("envName = %q", envName("session.idle_timeout_ms"))
	}
}
