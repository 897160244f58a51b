// Package clinical stores users, encounters and clinical notes in the
// service database and resolves users for authentication.
//
// The schema is managed by embedded golang-migrate files; Migrate plugs into
// database.Component.WithMigrator.
package clinical
