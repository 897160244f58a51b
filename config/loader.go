package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/dictation/logger"
)

// FileSystem is the file access LoadConfig needs. Tests substitute it.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

type osFileSystem struct{}

func (osFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadEnv never overrides variables already set in the process.
func (osFileSystem) LoadEnv(path string) error { return godotenv.Load(path) }

type loaderOptions struct {
	fs         FileSystem
	configFile string
	envFile    string
}

// LoaderOption customizes LoadConfig.
type LoaderOption func(*loaderOptions)

// WithFileSystem replaces the OS file system.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(o *loaderOptions) { o.fs = fs }
}

// WithConfigFile skips the search and reads path. A missing file is not an
// error; defaults and the environment still apply.
func WithConfigFile(path string) LoaderOption {
	return func(o *loaderOptions) { o.configFile = path }
}

// WithEnvFile skips the search and loads path into the environment.
func WithEnvFile(path string) LoaderOption {
	return func(o *loaderOptions) { o.envFile = path }
}

// LoadConfig fills cfg from, in increasing precedence, the service's
// config.yml, its .env file and the process environment.
//
// Every key of cfg, derived from its mapstructure tags, is bound to two
// variables: the upper-cased path with dots as underscores, and the same
// prefixed with the service name. For service "dictation" the key
// recognition.max_sessions reads DICTATION_RECOGNITION_MAX_SESSIONS first,
// then RECOGNITION_MAX_SESSIONS.
func LoadConfig(serviceName string, cfg interface{}, opts ...LoaderOption) error {
	o := loaderOptions{fs: osFileSystem{}}
	for _, opt := range opts {
		opt(&o)
	}
	configFile, envFile := o.configFile, o.envFile
	if configFile == "" {
		configFile = firstExisting(o.fs, configSearchPaths(serviceName))
	}
	if envFile == "" {
		envFile = firstExisting(o.fs, envSearchPaths(serviceName))
	}

	v := viper.New()
	if configFile != "" && o.fs.Exists(configFile) {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read %s: %w", configFile, err)
		}
	}
	if envFile != "" && o.fs.Exists(envFile) {
		if err := o.fs.LoadEnv(envFile); err != nil {
			logger.Warn("Failed to load env file", map[string]interface{}{
				"file":            envFile,
				logger.FieldError: err.Error(),
			})
		}
	}

	prefix := envName(serviceName) + "_"
	for _, key := range configKeys(reflect.TypeOf(cfg), "") {
		name := envName(key)
		if err := v.BindEnv(key, prefix+name, name); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decode %s config: %w", serviceName, err)
	}
	return nil
}

func configSearchPaths(service string) []string {
	return []string{
		"./cmd/" + service + "/config.yml",
		"./config/" + service + ".yml",
		"./config/config.yml",
		"./config.yml",
	}
}

func envSearchPaths(service string) []string {
	return []string{
		"./cmd/" + service + "/.env",
		"./.env." + service,
		"./.env",
	}
}

func firstExisting(fs FileSystem, paths []string) string {
	for _, p := range paths {
		if fs.Exists(p) {
			return p
		}
	}
	return ""
}

func envName(key string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

var timeType = reflect.TypeOf(time.Time{})

// configKeys lists the dotted keys of the struct type t as mapstructure
// would decode them. Squashed embeds share their parent's prefix.
func configKeys(t reflect.Type, prefix string) []string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t == timeType {
		if prefix == "" {
			return nil
		}
		return []string{prefix}
	}

	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			continue
		}
		if strings.Contains(opts, "squash") {
			keys = append(keys, configKeys(f.Type, prefix)...)
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		keys = append(keys, configKeys(f.Type, name)...)
	}
	return keys
}
