package objectid

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// domain-separation prefixes for this core's object model, so unscoped
// and zone-scoped digests can never collide even given identical input
// bytes.
const (
	prefixUnscoped = "fcp:object:v1\x00"
	prefixScoped   = "fcp:object:zoned:v1\x00"
)

// FromUnscopedBytes derives a content-addressed id directly from canonical
// bytes, with no zone salt. Used for approval/sanitizer-receipt ids (spec
// §4.2): the id is a cryptographic commitment to the token content alone,
// independent of which zone observes it.
func FromUnscopedBytes(canonicalBytes []byte) ObjectId {
	h := blake3.New(Size, nil)
	h.Write([]byte(prefixUnscoped))
	h.Write(canonicalBytes)
	return FromDigest(h.Sum(nil))
}

// FromScopedBytes derives a content-addressed id salted by a zone key, for
// persisted objects that must not collide across zones even if their
// canonical encoding happens to match.
func FromScopedBytes(key Key, canonicalBytes []byte) ObjectId {
	h := blake3.New(Size, nil)
	h.Write([]byte(prefixScoped))
	h.Write(key.ZoneSalt)
	h.Write(canonicalBytes)
	return FromDigest(h.Sum(nil))
}

// Blake3Hex returns the "blake3-256:"-prefixed lower-case hex digest of
// data, the form spec §4.3.1 mandates for PolicyBundle.bundle_hash.
func Blake3Hex(data []byte) string {
	h := blake3.Sum256(data)
	return "blake3-256:" + hex.EncodeToString(h[:])
}
