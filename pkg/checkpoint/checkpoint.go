// Package checkpoint implements CaptureCheckpoint: an atomically-persisted,
// per-pane resumption record for parallel capture panes (spec §4.4.5).
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PaneCaptureState is one pane's resumption cursor.
type PaneCaptureState struct {
	PaneID        string `json:"pane_id"`
	LastSeq       int64  `json:"last_seq"`
	CursorOffset  int64  `json:"cursor_offset"`
	LastCaptureAt int64  `json:"last_capture_at"` // epoch-seconds
}

// CaptureCheckpoint is the on-disk shape; version must be 1.
type CaptureCheckpoint struct {
	Version   int                `json:"version"`
	CreatedAt int64              `json:"created_at"`
	Panes     []PaneCaptureState `json:"panes"`
	WAVersion string             `json:"wa_version"`
}

const checkpointVersion = 1

// New returns an empty checkpoint with version stamped.
func New(createdAt int64, waVersion string) CaptureCheckpoint {
	return CaptureCheckpoint{Version: checkpointVersion, CreatedAt: createdAt, WAVersion: waVersion}
}

// lastSeqForPane finds a pane's last_seq, if recorded.
func (c CaptureCheckpoint) lastSeqForPane(paneID string) (int64, bool) {
	for _, p := range c.Panes {
		if p.PaneID == paneID {
			return p.LastSeq, true
		}
	}
	return 0, false
}

// ShouldSkipSegment reports whether seq has already been captured for pane
// (spec §4.4.5): false when the pane has no recorded state.
func (c CaptureCheckpoint) ShouldSkipSegment(paneID string, seq int64) bool {
	lastSeq, ok := c.lastSeqForPane(paneID)
	if !ok {
		return false
	}
	return seq <= lastSeq
}

// WithPane returns a copy of c with pane's state set (replacing any
// existing entry for the same pane_id).
func (c CaptureCheckpoint) WithPane(pane PaneCaptureState) CaptureCheckpoint {
	out := c
	out.Panes = append([]PaneCaptureState(nil), c.Panes...)
	for i, p := range out.Panes {
		if p.PaneID == pane.PaneID {
			out.Panes[i] = pane
			return out
		}
	}
	out.Panes = append(out.Panes, pane)
	return out
}

// Store persists CaptureCheckpoints to a single file atomically (write
// temp, rename).
type Store struct {
	path string
}

// NewStore returns a Store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save serializes and atomically writes the checkpoint.
func (s *Store) Save(c CaptureCheckpoint) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, body, 0o600); err != nil {
		return fmt.Errorf("checkpoint: write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("checkpoint: commit rename: %w", err)
	}
	return nil
}

// Load reads and validates the checkpoint; version != 1 is rejected.
func (s *Store) Load() (CaptureCheckpoint, error) {
	body, err := os.ReadFile(s.path)
	if err != nil {
		return CaptureCheckpoint{}, fmt.Errorf("checkpoint: read: %w", err)
	}
	var c CaptureCheckpoint
	if err := json.Unmarshal(body, &c); err != nil {
		return CaptureCheckpoint{}, fmt.Errorf("checkpoint: unmarshal: %w", err)
	}
	if c.Version != checkpointVersion {
		return CaptureCheckpoint{}, fmt.Errorf("checkpoint: unsupported version %d", c.Version)
	}
	return c, nil
}

// Dir is a convenience for callers that want the containing directory (e.g.
// to ensure it exists before Save).
func (s *Store) Dir() string {
	return filepath.Dir(s.path)
}
