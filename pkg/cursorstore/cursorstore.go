// Package cursorstore implements the fenced cursor store: a
// CursorStoreBackend port plus the in-process commit protocol that
// enforces monotone seq and non-decreasing lease_seq/offset/watermark
// (spec §4.4.4).
package cursorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/flywheel-sh/fcpcore/pkg/objecthdr"
	"github.com/flywheel-sh/fcpcore/pkg/objectid"
)

// Lease fences a cursor commit to a particular lease owner/epoch.
type Lease struct {
	LeaseSeq int64
	OwnerID  string
}

// Cursor is the caller-observed progress to commit.
type Cursor struct {
	Offset    *int64
	Watermark *int64
}

// ConnectorStateObject is the persisted, append-only state-object the cursor
// store commits (spec §3, schema fcp.connector_state:state_object@1.0.0).
type ConnectorStateObject struct {
	Header   objecthdr.Header   `json:"header"`
	Seq      int64              `json:"seq"`
	LeaseSeq int64              `json:"lease_seq"`
	Cursor   Cursor             `json:"cursor"`
	Prev     *objectid.ObjectId `json:"prev,omitempty"`
}

// Backend is the storage port: load_head / store_state_object.
type Backend interface {
	LoadHead(ctx context.Context) (objectid.ObjectId, ConnectorStateObject, bool, error)
	StoreStateObject(ctx context.Context, obj ConnectorStateObject) (objectid.ObjectId, error)
}

// StaleLeaseSeqError is returned when a commit's lease_seq regresses.
type StaleLeaseSeqError struct{ Current, Incoming int64 }

func (e StaleLeaseSeqError) Error() string {
	return fmt.Sprintf("cursorstore: stale lease_seq: current=%d incoming=%d", e.Current, e.Incoming)
}

// OffsetRegressionError is returned when a commit's offset regresses.
type OffsetRegressionError struct{ Current, Incoming int64 }

func (e OffsetRegressionError) Error() string {
	return fmt.Sprintf("cursorstore: offset regression: current=%d incoming=%d", e.Current, e.Incoming)
}

// WatermarkRegressionError is returned when a commit's watermark regresses.
type WatermarkRegressionError struct{ Current, Incoming int64 }

func (e WatermarkRegressionError) Error() string {
	return fmt.Sprintf("cursorstore: watermark regression: current=%d incoming=%d", e.Current, e.Incoming)
}

// Store wraps a Backend, serializing commits against an in-memory head
// (spec §5: "the in-process CursorStore serializes commits against an
// in-memory head").
type Store struct {
	mu      sync.Mutex
	backend Backend

	loaded       bool
	headID       objectid.ObjectId
	head         ConnectorStateObject
	hasHead      bool
	lastLeaseSeq int64
}

// New wraps backend; the head is lazily loaded on first commit.
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Load forces the in-memory head to sync from the backend, if it hasn't
// already. Host code that reads Head() before ever calling CommitCursor
// (e.g. a PollingCursor.Restore() on startup) needs this to see state a
// prior process already persisted.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLoaded(ctx)
}

func (s *Store) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	id, head, ok, err := s.backend.LoadHead(ctx)
	if err != nil {
		return fmt.Errorf("cursorstore: load_head: %w", err)
	}
	s.loaded = true
	if ok {
		s.headID = id
		s.head = head
		s.hasHead = true
		s.lastLeaseSeq = head.LeaseSeq
	}
	return nil
}

// CommitCursor validates and persists a new cursor, returning the new head
// object id on success.
func (s *Store) CommitCursor(ctx context.Context, header objecthdr.Header, cursor Cursor, lease Lease) (objectid.ObjectId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return objectid.ObjectId{}, err
	}

	if s.hasHead {
		if lease.LeaseSeq < s.lastLeaseSeq {
			return objectid.ObjectId{}, StaleLeaseSeqError{Current: s.lastLeaseSeq, Incoming: lease.LeaseSeq}
		}
		if cursor.Offset != nil && s.head.Cursor.Offset != nil && *cursor.Offset < *s.head.Cursor.Offset {
			return objectid.ObjectId{}, OffsetRegressionError{Current: *s.head.Cursor.Offset, Incoming: *cursor.Offset}
		}
		if cursor.Watermark != nil && s.head.Cursor.Watermark != nil && *cursor.Watermark < *s.head.Cursor.Watermark {
			return objectid.ObjectId{}, WatermarkRegressionError{Current: *s.head.Cursor.Watermark, Incoming: *cursor.Watermark}
		}
	}

	nextSeq := int64(0)
	var prev *objectid.ObjectId
	if s.hasHead {
		nextSeq = s.head.Seq + 1
		headID := s.headID
		prev = &headID
	}

	withRef := header.AddRef(leaseObjectID(lease))

	obj := ConnectorStateObject{
		Header:   withRef,
		Seq:      nextSeq,
		LeaseSeq: lease.LeaseSeq,
		Cursor:   cursor,
		Prev:     prev,
	}

	newID, err := s.backend.StoreStateObject(ctx, obj)
	if err != nil {
		return objectid.ObjectId{}, fmt.Errorf("cursorstore: store_state_object: %w", err)
	}

	s.headID = newID
	s.head = obj
	s.hasHead = true
	s.lastLeaseSeq = lease.LeaseSeq

	return newID, nil
}

// leaseObjectID derives a stable, unscoped id for a lease so it can be
// appended to a header's refs.
func leaseObjectID(lease Lease) objectid.ObjectId {
	return objectid.FromUnscopedBytes([]byte(fmt.Sprintf("lease:%s:%d", lease.OwnerID, lease.LeaseSeq)))
}

// Head returns the currently known head, if any.
func (s *Store) Head() (objectid.ObjectId, ConnectorStateObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headID, s.head, s.hasHead
}
