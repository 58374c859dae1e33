// Package sqlite provides the SQLite backend of the player state store.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/artpar/menagerie/adapters/sqlstore"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a SQLite database connection.
type DB struct {
	*sql.DB
}

// Open creates a new SQLite database connection.
// Write transactions take the lock up front so concurrent commits wait on
// the busy timeout instead of failing.
func Open(path string) (*DB, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	return &DB{DB: db}, nil
}

// Migrate runs all pending migrations.
func (db *DB) Migrate(ctx context.Context) error {
	return sqlstore.Migrate(ctx, db.DB, sqlstore.SQLite, migrationsFS, "migrations")
}

// StateStore returns the player state store backed by db.
func (db *DB) StateStore() *sqlstore.StateStore {
	return sqlstore.NewStateStore(db.DB, sqlstore.SQLite)
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
