package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/dictation/clinical"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the clinical schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}

			cfg, err := loadConfig(opts.configFile, opts.envFile)
			if err != nil {
				return err
			}
			cfg.Database.AutoMigrate = false
			app, inf, err := newApp(cfg)
			if err != nil {
				return err
			}

			return app.RunTask(cmd.Context(), func(ctx context.Context) error {
				db := inf.db.DB()
				run := clinical.Migrate
				if direction == "down" {
					run = clinical.Rollback
				}
				if err := run(ctx, db); err != nil {
					return fmt.Errorf("migrate %s: %w", direction, err)
				}
				v, dirty, err := clinical.SchemaVersion(db)
				if err != nil {
					return err
				}
				app.Logger.Info("Migration complete", map[string]interface{}{
					"direction": direction,
					"version":   v,
					"dirty":     dirty,
				})
				return nil
			})
		},
	}
}
