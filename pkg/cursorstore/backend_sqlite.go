package cursorstore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteBackend is a durable Backend backed by a SQLite file, for
// single-node deployments that want a durable fenced cursor head without
// standing up Postgres. Only the current head is stored, not the history.
type SQLiteBackend struct {
	*sqlBackend
}

// NewSQLiteBackend opens path with modernc.org/sqlite (pure Go, no cgo) and
// wraps it as a Backend for the connector identified by key. Call
// EnsureSchema once before first use.
func NewSQLiteBackend(path, key string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cursorstore: open sqlite: %w", err)
	}
	return &SQLiteBackend{sqlBackend: newSQLBackend(db, key, sqliteParam)}, nil
}

func sqliteParam(int) string { return "?" }

func (b *SQLiteBackend) Close() error { return b.db.Close() }
