package checkpoint_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flywheel-sh/fcpcore/pkg/checkpoint"
)

func TestShouldSkipSegment(t *testing.T) {
	c := checkpoint.New(1000, "1.0.0").WithPane(checkpoint.PaneCaptureState{PaneID: "pane-1", LastSeq: 10})

	require.True(t, c.ShouldSkipSegment("pane-1", 10))
	require.True(t, c.ShouldSkipSegment("pane-1", 5))
	require.False(t, c.ShouldSkipSegment("pane-1", 11))
	require.False(t, c.ShouldSkipSegment("pane-2", 1))
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := checkpoint.NewStore(path)

	c := checkpoint.New(1000, "1.0.0").WithPane(checkpoint.PaneCaptureState{PaneID: "pane-1", LastSeq: 5, CursorOffset: 50})

	require.NoError(t, store.Save(c))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, c, loaded)
}

func TestStoreLoadRejectsWrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := checkpoint.NewStore(path)

	c := checkpoint.New(1000, "1.0.0")
	c.Version = 2
	require.NoError(t, store.Save(c))

	_, err := store.Load()
	require.Error(t, err)
}
