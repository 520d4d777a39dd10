// Package database opens the SQLite file that holds switch history and
// applies schema migrations to it.
//
// The connection uses WAL mode and a busy timeout so the history writer
// and API readers do not trip over each other. A single open connection
// is kept; SQLite serialises writers anyway.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql, with an
// optional matching .down.sql.
package database
