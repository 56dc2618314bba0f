// Package bundle implements the Policy Bundle Lifecycle: canonical hashing,
// deterministic diffing, risk classification, and decision-preview
// simulation over signed collections of policy object references
// (spec §4.3).
package bundle

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/flywheel-sh/fcpcore/pkg/canonical"
	"github.com/flywheel-sh/fcpcore/pkg/fcpcrypto"
	"github.com/flywheel-sh/fcpcore/pkg/objectid"
)

// PreviewSchemaID is the fixed schema id folded into a bundle's signing
// bytes, alongside its computed bundle_hash (spec §4.3.1).
const PreviewSchemaID = "fcp://schemas/policybundle/v1"

// PolicyRef points at one policy object participating in a bundle.
type PolicyRef struct {
	ObjectID   string `json:"object_id"`
	SchemaID   string `json:"schema_id"`
	ObjectHash string `json:"object_hash"`
}

// PolicyBundle is a signed collection of policy object references,
// identified by a BLAKE3 hash over its canonical payload.
type PolicyBundle struct {
	Format         string      `json:"format"`
	SchemaVersion  string      `json:"schema_version"`
	BundleID       string      `json:"bundle_id"`
	ZoneID         string      `json:"zone_id"`
	PolicySeq      int64       `json:"policy_seq"`
	CreatedAt      *int64      `json:"created_at,omitempty"`
	PreviousBundle string      `json:"previous_bundle,omitempty"`
	HashAlgo       string      `json:"hash_algo"`
	Policies       []PolicyRef `json:"policies"`

	BundleHash   string   `json:"bundle_hash"`
	KeyID        string   `json:"key_id,omitempty"`
	Signature    []byte   `json:"signature,omitempty"`
	SignedFields []string `json:"signed_fields,omitempty"`
}

// hashPayload is the exact struct canonical-CBOR-encoded to produce
// bundle_hash (spec §4.3.1): no signature, no bundle_hash field, policies
// sorted by (object_id, schema_id, object_hash).
type hashPayload struct {
	Format         string      `json:"format"`
	SchemaVersion  string      `json:"schema_version"`
	BundleID       string      `json:"bundle_id"`
	ZoneID         string      `json:"zone_id"`
	PolicySeq      int64       `json:"policy_seq"`
	CreatedAt      *int64      `json:"created_at,omitempty"`
	PreviousBundle string      `json:"previous_bundle,omitempty"`
	HashAlgo       string      `json:"hash_algo"`
	Policies       []PolicyRef `json:"policies"`
}

func sortedPolicies(refs []PolicyRef) []PolicyRef {
	out := append([]PolicyRef(nil), refs...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].ObjectID != out[j].ObjectID {
			return out[i].ObjectID < out[j].ObjectID
		}
		if out[i].SchemaID != out[j].SchemaID {
			return out[i].SchemaID < out[j].SchemaID
		}
		return out[i].ObjectHash < out[j].ObjectHash
	})
	return out
}

// ComputeBundleHash derives bundle_hash from a bundle's payload (everything
// but signature/bundle_hash), per spec §4.3.1: sort policies, canonical-CBOR
// encode, BLAKE3, format as "blake3-256:"+hex64.
func ComputeBundleHash(b PolicyBundle) (string, error) {
	payload := hashPayload{
		Format:         b.Format,
		SchemaVersion:  b.SchemaVersion,
		BundleID:       b.BundleID,
		ZoneID:         b.ZoneID,
		PolicySeq:      b.PolicySeq,
		CreatedAt:      b.CreatedAt,
		PreviousBundle: b.PreviousBundle,
		HashAlgo:       b.HashAlgo,
		Policies:       sortedPolicies(b.Policies),
	}
	body, err := canonical.CBOR(payload)
	if err != nil {
		return "", fmt.Errorf("bundle: canonicalize payload: %w", err)
	}
	return objectid.Blake3Hex(body), nil
}

// Sign computes bundle_hash, stamps it onto b, and signs the bundle per the
// spec §6 signing-bytes convention (schema id + canonical-CBOR of a payload
// that additionally carries the computed bundle_hash).
func Sign(signer fcpcrypto.Signer, b PolicyBundle, signedFields []string) (PolicyBundle, error) {
	hash, err := ComputeBundleHash(b)
	if err != nil {
		return PolicyBundle{}, err
	}
	b.BundleHash = hash
	b.SignedFields = signedFields
	b.KeyID = signer.KeyID()

	signingPayload := struct {
		hashPayload
		BundleHash string `json:"bundle_hash"`
	}{
		hashPayload: hashPayload{
			Format:         b.Format,
			SchemaVersion:  b.SchemaVersion,
			BundleID:       b.BundleID,
			ZoneID:         b.ZoneID,
			PolicySeq:      b.PolicySeq,
			CreatedAt:      b.CreatedAt,
			PreviousBundle: b.PreviousBundle,
			HashAlgo:       b.HashAlgo,
			Policies:       sortedPolicies(b.Policies),
		},
		BundleHash: hash,
	}
	signingBytes, err := fcpcrypto.SigningBytes(PreviewSchemaID, signingPayload)
	if err != nil {
		return PolicyBundle{}, err
	}
	sig, err := signer.Sign(signingBytes)
	if err != nil {
		return PolicyBundle{}, err
	}
	b.Signature = sig
	return b, nil
}

var bundleHashPattern = regexp.MustCompile(`^blake3-256:[0-9a-f]{64}$`)

// Validate checks the structural invariants spec §4.3.1 names: format,
// schema_version, hash_algo, bundle_hash shape, non-empty policies with
// well-formed refs, and a populated ed25519 signature envelope.
func Validate(b PolicyBundle) error {
	if b.Format != "fcp-policy-bundle" {
		return fmt.Errorf("bundle: format must be \"fcp-policy-bundle\", got %q", b.Format)
	}
	if b.SchemaVersion != "1.0" {
		return fmt.Errorf("bundle: schema_version must be \"1.0\", got %q", b.SchemaVersion)
	}
	if b.HashAlgo != "blake3-256" {
		return fmt.Errorf("bundle: hash_algo must be \"blake3-256\", got %q", b.HashAlgo)
	}
	if !bundleHashPattern.MatchString(b.BundleHash) {
		return fmt.Errorf("bundle: bundle_hash %q does not match ^blake3-256:[0-9a-f]{64}$", b.BundleHash)
	}
	if len(b.Policies) == 0 {
		return fmt.Errorf("bundle: policies must be non-empty")
	}
	for _, ref := range b.Policies {
		if ref.ObjectID == "" {
			return fmt.Errorf("bundle: policy ref has empty object_id")
		}
		if ref.SchemaID == "" {
			return fmt.Errorf("bundle: policy ref %s has empty schema_id", ref.ObjectID)
		}
		if !bundleHashPattern.MatchString(ref.ObjectHash) {
			return fmt.Errorf("bundle: policy ref %s has invalid object_hash %q", ref.ObjectID, ref.ObjectHash)
		}
	}
	if b.KeyID == "" {
		return fmt.Errorf("bundle: key_id must be non-empty")
	}
	if len(b.Signature) == 0 {
		return fmt.Errorf("bundle: signature must be non-empty")
	}
	if len(b.SignedFields) == 0 {
		return fmt.Errorf("bundle: signed_fields must be non-empty")
	}
	return nil
}
