package clinical

import (
	"context"
	"embed"

	"github.com/kbukum/dictation/database"
	"github.com/kbukum/dictation/database/migration"
	"github.com/kbukum/dictation/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func migrator(db *database.DB) (*migration.Migrator, error) {
	return migration.New(db.GormDB, migrationsFS, "migrations", logger.GetGlobalLogger())
}

// Migrate applies pending schema migrations. It satisfies database.Migrator.
func Migrate(_ context.Context, db *database.DB) error {
	mg, err := migrator(db)
	if err != nil {
		return err
	}
	return mg.Up()
}

// Rollback reverts every schema migration.
func Rollback(_ context.Context, db *database.DB) error {
	mg, err := migrator(db)
	if err != nil {
		return err
	}
	return mg.Down()
}

// SchemaVersion returns the applied migration version.
func SchemaVersion(db *database.DB) (uint, bool, error) {
	mg, err := migrator(db)
	if err != nil {
		return 0, false, err
	}
	return mg.Version()
}
