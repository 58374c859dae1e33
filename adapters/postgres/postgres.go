// Package postgres provides the Postgres backend of the player state store,
// using pgx through database/sql.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/artpar/menagerie/adapters/sqlstore"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	driverName = "pgx"
	defaultDSN = "postgres://localhost/menagerie?sslmode=disable"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// DB wraps a Postgres connection pool.
type DB struct {
	*sql.DB
}

// Open connects to dsn (defaultDSN when empty) and checks the connection.
func Open(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{DB: db}, nil
}

// Migrate runs all pending migrations.
func (db *DB) Migrate(ctx context.Context) error {
	return sqlstore.Migrate(ctx, db.DB, sqlstore.Postgres, migrationsFS, "migrations")
}

// StateStore returns the player state store backed by db.
func (db *DB) StateStore() *sqlstore.StateStore {
	return sqlstore.NewStateStore(db.DB, sqlstore.Postgres)
}
