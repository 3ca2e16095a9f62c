// Package database provides the SQLite connection that holds thermostat state.
//
// This package manages:
//   - Opening the database file (directory created, mode 0600)
//   - WAL mode and busy timeout pragmas
//   - Forward-only schema migrations read from an fs.FS
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
