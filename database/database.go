package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kbukum/dictation/logger"
	"github.com/kbukum/dictation/resilience"
)

// DB is an open note database.
type DB struct {
	GormDB *gorm.DB
	log    *logger.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open connects to the SQLite database at cfg.DSN, retrying while the file
// is locked or the driver reports a transient failure.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*DB, error) {
	return open(ctx, sqlite.Open(cfg.DSN), cfg, log)
}

func open(ctx context.Context, dialector gorm.Dialector, cfg Config, log *logger.Logger) (*DB, error) {
	cfg.ApplyDefaults()
	gormCfg := &gorm.Config{
		Logger:         newQueryLogger(log, cfg),
		TranslateError: true,
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.ConnectAttempts
	retry.InitialBackoff = 200 * time.Millisecond
	retry.RetryIf = IsTransient
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		log.Warn("Database not ready, retrying", map[string]interface{}{
			"attempt":         attempt,
			"backoff":         backoff.String(),
			logger.FieldError: err.Error(),
		})
	}

	gdb, err := resilience.Retry(ctx, retry, func() (*gorm.DB, error) {
		gdb, err := gorm.Open(dialector, gormCfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		return gdb, nil
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DSN, err)
	}

	sqlDB, _ := gdb.DB()
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Note segments reference their note; SQLite only enforces that per
	// connection.
	if err := gdb.WithContext(ctx).Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &DB{GormDB: gdb, log: log}, nil
}

// Close releases the pool. Later calls return the first result.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		sqlDB, err := d.GormDB.DB()
		if err != nil {
			d.closeErr = err
			return
		}
		d.closeErr = sqlDB.Close()
	})
	return d.closeErr
}

func (d *DB) PingContext(ctx context.Context) error {
	sqlDB, err := d.GormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// WithContext returns a gorm session bound to ctx.
func (d *DB) WithContext(ctx context.Context) *gorm.DB {
	return d.GormDB.WithContext(ctx)
}

// WithTransaction runs fn in a transaction. An error or panic in fn rolls
// it back; the panic is re-raised after logging.
func (d *DB) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := d.GormDB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			d.log.Error("Transaction panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			d.log.Warn("Rollback failed", map[string]interface{}{logger.FieldError: rbErr.Error()})
		}
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
