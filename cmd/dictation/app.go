package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kbukum/dictation/bootstrap"
	"github.com/kbukum/dictation/clinical"
	"github.com/kbukum/dictation/component"
	"github.com/kbukum/dictation/database"
	"github.com/kbukum/dictation/logger"
	"github.com/kbukum/dictation/observability"
	"github.com/kbukum/dictation/oneshot"
	"github.com/kbukum/dictation/redis"
	"github.com/kbukum/dictation/session"
	"github.com/kbukum/dictation/storage"
	"github.com/kbukum/dictation/transcription"
	"github.com/kbukum/dictation/transcription/awstranscribe"
	"github.com/kbukum/dictation/transcription/google"
	"github.com/kbukum/dictation/transcription/whisper"

	// Storage backends register their factories on import.
	_ "github.com/kbukum/dictation/storage/local"
	_ "github.com/kbukum/dictation/storage/s3"
)

type App = bootstrap.App[*Config]

// infra holds the components every command starts before its own wiring.
type infra struct {
	db      *database.Component
	storage *storage.Component
	redis   *redis.Component
	metrics *observability.Metrics
}

// newApp creates the application and registers the shared components in
// dependency order: telemetry, database, storage, then redis when enabled.
func newApp(cfg *Config) (*App, *infra, error) {
	cfg.ApplyDefaults()
	stopBudget := component.DefaultStopTimeout
	if d := cfg.Recognition.SaveTimeout + 5*time.Second; d > stopBudget {
		stopBudget = d
	}

	app, err := bootstrap.NewApp(cfg, bootstrap.WithGracefulTimeout(stopBudget+10*time.Second))
	if err != nil {
		return nil, nil, err
	}
	app.Components.SetStopTimeout(stopBudget)

	metrics, err := observability.DefaultMetrics()
	if err != nil {
		return nil, nil, fmt.Errorf("metrics: %w", err)
	}
	inf := &infra{
		db:      database.NewComponent(cfg.Database, app.Logger).WithMigrator(clinical.Migrate),
		storage: storage.NewComponent(cfg.Storage, app.Logger),
		metrics: metrics,
	}

	comps := []component.Component{
		observability.NewComponent(cfg.Observability, cfg.Name, cfg.Version, cfg.Environment),
		inf.db,
		inf.storage,
	}
	if cfg.Redis.Enabled {
		inf.redis = redis.NewComponent(cfg.Redis, app.Logger)
		comps = append(comps, inf.redis)
	}
	for _, c := range comps {
		if err := app.RegisterComponent(c); err != nil {
			return nil, nil, err
		}
	}
	return app, inf, nil
}

// registryOptions attaches the Redis presence directory when redis is on.
func registryOptions(cfg *Config, inf *infra) []session.RegistryOption {
	if inf.redis == nil {
		return nil
	}
	instance := cfg.Presence.Instance
	if instance == "" {
		instance, _ = os.Hostname()
	}
	dir := session.NewRedisDirectory(inf.redis.Client(), cfg.Presence.Prefix, cfg.Presence.TTL)
	return []session.RegistryOption{session.WithDirectory(dir, instance)}
}

// streamingProvider builds the configured streaming backend.
func streamingProvider(ctx context.Context, cfg *Config, log *logger.Logger) (transcription.StreamingProvider, error) {
	reg := transcription.NewStreamingRegistry()
	reg.Register(google.ProviderName, google.StreamingFactory(ctx, cfg.GRPC, log))
	reg.Register(awstranscribe.ProviderName, awstranscribe.Factory(ctx))

	settings := googleSettings(cfg.Recognition.Google)
	if cfg.Recognition.Provider == awstranscribe.ProviderName {
		settings = map[string]any{
			"region":     cfg.Recognition.AWS.Region,
			"access_key": cfg.Recognition.AWS.AccessKey,
			"secret_key": cfg.Recognition.AWS.SecretKey,
			"endpoint":   cfg.Recognition.AWS.Endpoint,
		}
	}
	p, err := reg.Build(cfg.Recognition.Provider, settings)
	if err != nil {
		return nil, fmt.Errorf("streaming provider %s: %w", cfg.Recognition.Provider, err)
	}
	return p, nil
}

// fileProvider builds the configured one-shot transcriber.
func fileProvider(ctx context.Context, cfg *Config, log *logger.Logger) (transcription.Provider, error) {
	reg := transcription.NewRegistry()
	reg.Register(google.ProviderName, google.Factory(ctx, cfg.GRPC, log))
	reg.Register(whisper.ProviderName, whisper.Factory())

	settings := googleSettings(cfg.Recognition.Google)
	if cfg.OneShot.Provider == whisper.ProviderName {
		w := cfg.OneShot.Whisper
		settings = map[string]any{
			"url":          w.URL,
			"model":        w.Model,
			"language":     w.Language,
			"device":       w.Device,
			"compute_type": w.ComputeType,
			"timeout":      w.Timeout,
		}
	}
	p, err := reg.Build(cfg.OneShot.Provider, settings)
	if err != nil {
		return nil, fmt.Errorf("transcription provider %s: %w", cfg.OneShot.Provider, err)
	}
	return p, nil
}

func googleSettings(c google.Config) map[string]any {
	return map[string]any{
		"credentials_file": c.CredentialsFile,
		"endpoint":         c.Endpoint,
		"model":            c.Model,
	}
}

// newPipeline wires the upload path on top of started infrastructure.
func newPipeline(cfg *Config, inf *infra, transcriber transcription.Provider, notes oneshot.NoteCreator, log *logger.Logger) *oneshot.Pipeline {
	return oneshot.NewPipeline(
		inf.storage.Storage(),
		oneshot.NewFFmpegTranscoder(cfg.OneShot),
		transcriber,
		notes,
		cfg.OneShot,
		log,
		inf.metrics,
	)
}
