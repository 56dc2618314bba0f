// Package fcpcrypto provides Ed25519 signing and verification for
// DecisionReceipts, PolicyBundles, and approval/capability tokens, plus the
// canonical signing-bytes construction spec §6 requires: the schema
// identifier string followed by canonical-CBOR of the payload.
package fcpcrypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/flywheel-sh/fcpcore/pkg/canonical"
)

// Signer signs and verifies detached Ed25519 signatures over canonical
// payload bytes.
type Signer interface {
	Sign(data []byte) ([]byte, error)
	Verify(data, signature []byte) bool
	PublicKey() ed25519.PublicKey
	KeyID() string
}

// Ed25519Signer is the default Signer implementation.
type Ed25519Signer struct {
	priv  ed25519.PrivateKey
	pub   ed25519.PublicKey
	keyID string
}

// NewEd25519Signer generates a fresh keypair.
func NewEd25519Signer(keyID string) (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("fcpcrypto: key generation failed: %w", err)
	}
	return &Ed25519Signer{priv: priv, pub: pub, keyID: keyID}, nil
}

// NewEd25519SignerFromKey wraps an existing private key (e.g. loaded from
// a zone host-key store).
func NewEd25519SignerFromKey(priv ed25519.PrivateKey, keyID string) *Ed25519Signer {
	return &Ed25519Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey), keyID: keyID}
}

func (s *Ed25519Signer) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, data), nil
}

func (s *Ed25519Signer) Verify(data, signature []byte) bool {
	return ed25519.Verify(s.pub, data, signature)
}

func (s *Ed25519Signer) PublicKey() ed25519.PublicKey { return s.pub }

func (s *Ed25519Signer) KeyID() string { return s.keyID }

// PublicKeyHex renders the public key as lower-case hex, for embedding in
// zone host-key registries.
func (s *Ed25519Signer) PublicKeyHex() string { return hex.EncodeToString(s.pub) }

// VerifyWithKey verifies a detached signature against a raw public key,
// used when the verifier does not hold a Signer (e.g. verifying a token
// minted by a different principal).
func VerifyWithKey(pubKey ed25519.PublicKey, data, signature []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pubKey, data, signature)
}

// SigningBytes builds the spec §6 signing-bytes convention: the schema
// identifier string, followed by canonical-CBOR of payload.
func SigningBytes(schemaID string, payload interface{}) ([]byte, error) {
	body, err := canonical.CBOR(payload)
	if err != nil {
		return nil, fmt.Errorf("fcpcrypto: canonicalize payload: %w", err)
	}
	out := make([]byte, 0, len(schemaID)+len(body))
	out = append(out, schemaID...)
	out = append(out, body...)
	return out, nil
}
