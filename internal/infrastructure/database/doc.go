// Package database provides the SQLite store behind pinforge projects and
// allocation runs.
//
// It manages:
//   - The connection, with foreign keys on and optional WAL mode
//   - Versioned schema migrations read from an fs.FS
//   - Health checks for the API health endpoint
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns are NULLABLE or carry a DEFAULT, and
// every .up.sql has a matching .down.sql. Tables are declared STRICT.
//
// All queries use parameterised statements. The database file is created
// with mode 0600.
package database
