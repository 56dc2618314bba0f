package fcpcrypto

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// LegacyReceiptDigestHex computes a receipt digest using the pre-BLAKE3
// hash construction this core used before the objectid package's rollout
// to BLAKE3. Kept only so receipts minted by zones that have not yet
// rotated their archival verifier can still be checked against their
// original digest; new receipts never use this path.
func LegacyReceiptDigestHex(data []byte) (string, error) {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyLegacyReceiptDigest reports whether data hashes to the given
// lower-case hex BLAKE2b-256 digest.
func VerifyLegacyReceiptDigest(data []byte, digestHex string) bool {
	got, err := LegacyReceiptDigestHex(data)
	if err != nil {
		return false
	}
	return got == digestHex
}
