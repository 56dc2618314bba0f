// Package objectid implements content-addressed object identifiers and
// schema identifiers for the capability-gated invocation core.
package objectid

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Size is the digest length in bytes (BLAKE3-256 truncated to 32 bytes).
const Size = 32

// ObjectId is a 32-byte content-addressed digest of a canonical-encoded
// object. It is comparable and safe to use as a map key.
type ObjectId [Size]byte

// String returns the lower-case hex form.
func (id ObjectId) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value.
func (id ObjectId) IsZero() bool {
	return id == ObjectId{}
}

// Bytes returns a copy of the underlying digest bytes.
func (id ObjectId) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, id[:])
	return out
}

// Parse decodes a hex string into an ObjectId.
func Parse(s string) (ObjectId, error) {
	var id ObjectId
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("objectid: invalid hex: %w", err)
	}
	if len(b) != Size {
		return id, fmt.Errorf("objectid: expected %d bytes, got %d", Size, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// FromDigest wraps a raw 32-byte digest (as produced by a hasher) into an
// ObjectId. Panics if the digest is not exactly Size bytes — callers control
// the hash algorithm and this indicates a programming error, not bad input.
func FromDigest(digest []byte) ObjectId {
	if len(digest) != Size {
		panic(fmt.Sprintf("objectid: digest must be %d bytes, got %d", Size, len(digest)))
	}
	var id ObjectId
	copy(id[:], digest)
	return id
}

// Key is a per-zone salt binding object ids to a zone, preventing a
// content-addressed object minted in one zone from colliding with an
// identically-encoded object in another.
type Key struct {
	ZoneSalt []byte
}

// ScopedHasher is the shape of a digest function over canonical bytes.
// FromScopedBytes derives digests salted by a Key; FromUnscopedBytes derives
// digests over the canonical bytes alone. Both are provided because
// approval/sanitizer-receipt ids are unscoped content commitments (spec
// §4.2) while most persisted objects are zone-scoped.
type ScopedHasher func(canonicalBytes []byte) ObjectId

// SchemaId identifies a persisted object's shape: namespace, name, and a
// semantic version. Comparisons use Masterminds/semver so that schema
// evolution (e.g. "1.0.0" vs "1.0.1") can be reasoned about without
// re-implementing semver ordering.
type SchemaId struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Version   string `json:"version"`
}

// String renders "namespace:name@version", e.g.
// "fcp.core:DecisionReceipt@1.0.0".
func (s SchemaId) String() string {
	return fmt.Sprintf("%s:%s@%s", s.Namespace, s.Name, s.Version)
}

// ParseSchemaId parses the "namespace:name@version" form.
func ParseSchemaId(s string) (SchemaId, error) {
	var out SchemaId
	colon := strings.IndexByte(s, ':')
	at := strings.LastIndexByte(s, '@')
	if colon < 0 || at < 0 || at < colon {
		return out, fmt.Errorf("objectid: malformed schema id %q", s)
	}
	out.Namespace = s[:colon]
	out.Name = s[colon+1 : at]
	out.Version = s[at+1:]
	if out.Namespace == "" || out.Name == "" || out.Version == "" {
		return out, fmt.Errorf("objectid: malformed schema id %q", s)
	}
	if _, err := semver.NewVersion(out.Version); err != nil {
		return out, fmt.Errorf("objectid: invalid semver %q: %w", out.Version, err)
	}
	return out, nil
}

// Compatible reports whether other has the same namespace/name and a
// version that is semver-compatible (same major) with s.
func (s SchemaId) Compatible(other SchemaId) bool {
	if s.Namespace != other.Namespace || s.Name != other.Name {
		return false
	}
	sv, err1 := semver.NewVersion(s.Version)
	ov, err2 := semver.NewVersion(other.Version)
	if err1 != nil || err2 != nil {
		return s.Version == other.Version
	}
	return sv.Major() == ov.Major()
}
