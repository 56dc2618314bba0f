package cursorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/flywheel-sh/fcpcore/pkg/canonical"
	"github.com/flywheel-sh/fcpcore/pkg/objectid"
)

// sqlBackend is the shared database/sql-backed Backend implementation for
// Postgres and SQLite: a single row per connector key holding the head
// object id and its canonical-CBOR body, upserted on every commit. The
// fencing logic itself lives entirely in Store.CommitCursor — this backend
// only needs to durably remember "what is the current head" (spec §4.4.4,
// "the backend's job is durability, not fencing").
type sqlBackend struct {
	db        *sql.DB
	key       string
	paramFunc func(n int) string
}

func newSQLBackend(db *sql.DB, key string, paramFunc func(n int) string) *sqlBackend {
	return &sqlBackend{db: db, key: key, paramFunc: paramFunc}
}

const sqlBackendSchema = `
CREATE TABLE IF NOT EXISTS fcp_cursor_heads (
	connector_key TEXT PRIMARY KEY,
	object_id     TEXT NOT NULL,
	body          BYTEA NOT NULL
)`

// EnsureSchema creates the backing table if it does not already exist.
func (b *sqlBackend) EnsureSchema(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, sqlBackendSchema)
	return err
}

func (b *sqlBackend) LoadHead(ctx context.Context) (objectid.ObjectId, ConnectorStateObject, bool, error) {
	query := fmt.Sprintf("SELECT object_id, body FROM fcp_cursor_heads WHERE connector_key = %s", b.paramFunc(1))
	row := b.db.QueryRowContext(ctx, query, b.key)

	var idHex string
	var body []byte
	if err := row.Scan(&idHex, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return objectid.ObjectId{}, ConnectorStateObject{}, false, nil
		}
		return objectid.ObjectId{}, ConnectorStateObject{}, false, fmt.Errorf("cursorstore: load head row: %w", err)
	}

	id, err := objectid.Parse(idHex)
	if err != nil {
		return objectid.ObjectId{}, ConnectorStateObject{}, false, fmt.Errorf("cursorstore: parse stored head id: %w", err)
	}
	var obj ConnectorStateObject
	if err := canonical.DecodeCBOR(body, &obj); err != nil {
		return objectid.ObjectId{}, ConnectorStateObject{}, false, fmt.Errorf("cursorstore: decode stored head body: %w", err)
	}
	return id, obj, true, nil
}

func (b *sqlBackend) StoreStateObject(ctx context.Context, obj ConnectorStateObject) (objectid.ObjectId, error) {
	body, err := canonical.CBOR(obj)
	if err != nil {
		return objectid.ObjectId{}, fmt.Errorf("cursorstore: canonicalize state object: %w", err)
	}
	id := objectid.FromUnscopedBytes(body)

	query := fmt.Sprintf(`
INSERT INTO fcp_cursor_heads (connector_key, object_id, body) VALUES (%s, %s, %s)
ON CONFLICT (connector_key) DO UPDATE SET object_id = excluded.object_id, body = excluded.body`,
		b.paramFunc(1), b.paramFunc(2), b.paramFunc(3))

	if _, err := b.db.ExecContext(ctx, query, b.key, id.String(), body); err != nil {
		return objectid.ObjectId{}, fmt.Errorf("cursorstore: upsert head: %w", err)
	}
	return id, nil
}
