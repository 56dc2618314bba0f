package cursorstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flywheel-sh/fcpcore/pkg/cursorstore"
	"github.com/flywheel-sh/fcpcore/pkg/objecthdr"
)

func ptr(v int64) *int64 { return &v }

func TestCommitCursor_MonotoneSeqAssignment(t *testing.T) {
	ctx := context.Background()
	store := cursorstore.New(cursorstore.NewMemoryBackend())

	_, err := store.CommitCursor(ctx, objecthdr.Header{}, cursorstore.Cursor{Offset: ptr(1)}, cursorstore.Lease{LeaseSeq: 1, OwnerID: "w1"})
	require.NoError(t, err)

	_, err = store.CommitCursor(ctx, objecthdr.Header{}, cursorstore.Cursor{Offset: ptr(2)}, cursorstore.Lease{LeaseSeq: 1, OwnerID: "w1"})
	require.NoError(t, err)

	_, head, ok := store.Head()
	require.True(t, ok)
	require.Equal(t, int64(1), head.Seq)
}

// Scenario F — OffsetRegression.
func TestCommitCursor_ScenarioF_OffsetRegression(t *testing.T) {
	ctx := context.Background()
	store := cursorstore.New(cursorstore.NewMemoryBackend())

	_, err := store.CommitCursor(ctx, objecthdr.Header{}, cursorstore.Cursor{Offset: ptr(10)}, cursorstore.Lease{LeaseSeq: 1, OwnerID: "w1"})
	require.NoError(t, err)

	_, err = store.CommitCursor(ctx, objecthdr.Header{}, cursorstore.Cursor{Offset: ptr(9)}, cursorstore.Lease{LeaseSeq: 2, OwnerID: "w1"})
	require.Error(t, err)

	var regressionErr cursorstore.OffsetRegressionError
	require.ErrorAs(t, err, &regressionErr)
	require.Equal(t, int64(10), regressionErr.Current)
	require.Equal(t, int64(9), regressionErr.Incoming)
}

// Scenario F — StaleLeaseSeq.
func TestCommitCursor_ScenarioF_StaleLeaseSeq(t *testing.T) {
	ctx := context.Background()
	store := cursorstore.New(cursorstore.NewMemoryBackend())

	_, err := store.CommitCursor(ctx, objecthdr.Header{}, cursorstore.Cursor{Offset: ptr(1)}, cursorstore.Lease{LeaseSeq: 5, OwnerID: "w1"})
	require.NoError(t, err)

	_, err = store.CommitCursor(ctx, objecthdr.Header{}, cursorstore.Cursor{Offset: ptr(2)}, cursorstore.Lease{LeaseSeq: 4, OwnerID: "w2"})
	require.Error(t, err)

	var staleErr cursorstore.StaleLeaseSeqError
	require.ErrorAs(t, err, &staleErr)
	require.Equal(t, int64(5), staleErr.Current)
	require.Equal(t, int64(4), staleErr.Incoming)
}

func TestCommitCursor_WatermarkRegressionRejected(t *testing.T) {
	ctx := context.Background()
	store := cursorstore.New(cursorstore.NewMemoryBackend())

	_, err := store.CommitCursor(ctx, objecthdr.Header{}, cursorstore.Cursor{Watermark: ptr(100)}, cursorstore.Lease{LeaseSeq: 1, OwnerID: "w1"})
	require.NoError(t, err)

	_, err = store.CommitCursor(ctx, objecthdr.Header{}, cursorstore.Cursor{Watermark: ptr(99)}, cursorstore.Lease{LeaseSeq: 2, OwnerID: "w1"})
	require.Error(t, err)

	var regressionErr cursorstore.WatermarkRegressionError
	require.ErrorAs(t, err, &regressionErr)
}

func TestCommitCursor_AppendsLeaseRefIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := cursorstore.New(cursorstore.NewMemoryBackend())

	_, err := store.CommitCursor(ctx, objecthdr.Header{}, cursorstore.Cursor{Offset: ptr(1)}, cursorstore.Lease{LeaseSeq: 1, OwnerID: "w1"})
	require.NoError(t, err)

	_, head, ok := store.Head()
	require.True(t, ok)
	require.Len(t, head.Header.Refs, 1)

	// Caller carries the previous header forward (as real callers do);
	// committing again under the same lease must not duplicate the ref.
	_, err = store.CommitCursor(ctx, head.Header, cursorstore.Cursor{Offset: ptr(2)}, cursorstore.Lease{LeaseSeq: 1, OwnerID: "w1"})
	require.NoError(t, err)

	_, head, _ = store.Head()
	require.Len(t, head.Header.Refs, 1)
}
