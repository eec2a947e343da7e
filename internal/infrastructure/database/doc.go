// Package database provides relational connectivity for the fleet store.
//
// This package manages:
//   - SQLite connections (WAL mode, busy timeout, single writer, 0600 file)
//   - PostgreSQL connections through the pgx database/sql driver
//   - Placeholder rebinding between the two dialects
//   - An idempotent embedded schema bootstrap (EnsureSchema)
//
// EnsureSchema is not a migration system. It only creates missing tables
// and indexes; existing columns are never changed.
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Target() never includes credentials, so it is safe to log
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Driver: "sqlite3", Path: "./data/fleet.db"})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.EnsureSchema(ctx); err != nil {
//	    return err
//	}
package database
