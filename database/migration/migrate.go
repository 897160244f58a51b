// Package migration applies the versioned SQL files embedded in the binary
// (VERSION_name.up.sql / VERSION_name.down.sql) with golang-migrate.
package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	"github.com/kbukum/dictation/logger"
)

// Migrator runs migrations from one directory of fsys against db. It
// borrows db's connection pool and never closes it.
type Migrator struct {
	m *migrate.Migrate
}

func New(db *gorm.DB, fsys fs.FS, dir string, log *logger.Logger) (*Migrator, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("migration: %w", err)
	}
	driver, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration: sqlite driver: %w", err)
	}
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("migration: source %s: %w", dir, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("migration: %w", err)
	}
	if log != nil {
		m.Log = migrateLogger{log.WithComponent("migration")}
	}
	return &Migrator{m: m}, nil
}

// Up applies every pending migration.
func (mg *Migrator) Up() error {
	return ignoreNoChange(mg.m.Up(), "up")
}

// Down reverts every applied migration.
func (mg *Migrator) Down() error {
	return ignoreNoChange(mg.m.Down(), "down")
}

// Version is the applied version, 0 on a fresh database.
func (mg *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func ignoreNoChange(err error, direction string) error {
	if err == nil || errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return fmt.Errorf("migrate %s: %w", direction, err)
}

// migrateLogger sends golang-migrate's progress lines to the service log.
type migrateLogger struct{ log *logger.Logger }

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (migrateLogger) Verbose() bool { return false }
