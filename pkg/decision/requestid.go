package decision

import (
	"github.com/google/uuid"

	"github.com/flywheel-sh/fcpcore/pkg/objectid"
)

// NewRequestID mints a fresh, non-content-addressed request id for callers
// (the CLI harness, the preview sampler) that need a unique identifier per
// invocation rather than a deterministic hash of the input. Ad hoc request
// tracing ids are conventionally random, not content-addressed, so this
// wraps a UUIDv4 into an ObjectId rather than reusing objectid.FromUnscopedBytes.
func NewRequestID() objectid.ObjectId {
	id := uuid.New()
	padded := make([]byte, objectid.Size)
	copy(padded, id[:])
	return objectid.FromDigest(padded)
}
