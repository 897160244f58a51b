package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kbukum/dictation/api"
	"github.com/kbukum/dictation/auth"
	"github.com/kbukum/dictation/clinical"
	"github.com/kbukum/dictation/dictation"
	"github.com/kbukum/dictation/server"
	"github.com/kbukum/dictation/session"
	"github.com/kbukum/dictation/transport"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dictation HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configFile, opts.envFile)
			if err != nil {
				return err
			}
			app, inf, err := newApp(cfg)
			if err != nil {
				return err
			}
			app.OnConfigure(func(ctx context.Context, a *App) error {
				return configureServer(ctx, a, inf)
			})
			return app.Run(cmd.Context())
		},
	}
}

// configureServer wires the session pipeline, the upload path and the
// routes once the database and storage are up. The components it registers
// stop in reverse: server first, then sessions drain, then backends close.
func configureServer(ctx context.Context, a *App, inf *infra) error {
	cfg := a.Cfg
	log := a.Logger

	store := clinical.NewStore(inf.db.DB(), log)
	verifier, err := auth.NewJWTVerifier(cfg.Auth)
	if err != nil {
		return err
	}
	authn := auth.NewAuthenticator(verifier, store)

	streaming, err := streamingProvider(ctx, cfg, log)
	if err != nil {
		return err
	}
	transcriber, err := fileProvider(ctx, cfg, log)
	if err != nil {
		return err
	}

	registry := session.NewRegistry(log, registryOptions(cfg, inf)...)
	orchestrator := dictation.NewOrchestrator(authn, registry, streaming, store, cfg.Recognition.Config, log, inf.metrics)
	pipeline := newPipeline(cfg, inf, transcriber, store, log)

	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware(inf.metrics)
	srv.RegisterDefaultEndpoints(a.Name, a.Components.HealthAll)
	api.New(api.Deps{
		Upgrader: transport.NewUpgrader(cfg.Transport),
		Sessions: orchestrator,
		Uploads:  pipeline,
		Notes:    store,
		Registry: registry,
		Authn:    authn,
	}, log).Register(srv.GinEngine())

	if err := a.RegisterComponent(newASRComponent(streaming, transcriber)); err != nil {
		return err
	}
	if err := a.RegisterComponent(orchestrator); err != nil {
		return err
	}
	return a.RegisterComponent(server.NewComponent(srv))
}
