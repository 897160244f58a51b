// Package database provides a GORM component backed by SQLite with
// connection retry, health checks, transactions, and a gorm logger that
// writes through the service logger.
//
// The clinical store opens it through the component registry:
//
//	db := database.NewComponent(cfg.Database, log).
//	    WithMigrator(clinical.Migrate)
//	registry.Register(db)
//
// FromDatabase translates gorm errors into AppErrors.
package database
