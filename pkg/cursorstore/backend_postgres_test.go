package cursorstore

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSQLBackend_StoreStateObject(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer func() { _ = db.Close() }()

	backend := newSQLBackend(db, "zone-a/connector-1", pgParam)
	ctx := context.Background()

	offset := int64(42)
	obj := ConnectorStateObject{Seq: 0, LeaseSeq: 1, Cursor: Cursor{Offset: &offset}}

	mock.ExpectExec("INSERT INTO fcp_cursor_heads").
		WithArgs("zone-a/connector-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := backend.StoreStateObject(ctx, obj)
	if err != nil {
		t.Fatalf("StoreStateObject returned error: %v", err)
	}
	if id.IsZero() {
		t.Fatal("expected a non-zero object id")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLBackend_LoadHead_NoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer func() { _ = db.Close() }()

	backend := newSQLBackend(db, "zone-a/connector-1", pgParam)
	ctx := context.Background()

	mock.ExpectQuery("SELECT object_id, body FROM fcp_cursor_heads").
		WithArgs("zone-a/connector-1").
		WillReturnRows(sqlmock.NewRows([]string{"object_id", "body"}))

	_, _, ok, err := backend.LoadHead(ctx)
	if err != nil {
		t.Fatalf("LoadHead returned error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for an empty head table")
	}
}
