package cursorstore

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresBackend is a durable Backend backed by a Postgres table, one row
// per connector cursor line.
type PostgresBackend struct {
	*sqlBackend
}

// NewPostgresBackend opens dsn with lib/pq and wraps it as a Backend for
// the connector identified by key. Call EnsureSchema once before first use.
func NewPostgresBackend(dsn, key string) (*PostgresBackend, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("cursorstore: open postgres: %w", err)
	}
	return &PostgresBackend{sqlBackend: newSQLBackend(db, key, pgParam)}, nil
}

func pgParam(n int) string { return fmt.Sprintf("$%d", n) }

func (b *PostgresBackend) Close() error { return b.db.Close() }
