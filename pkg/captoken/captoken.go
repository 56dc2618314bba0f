// Package captoken defines the signed, off-core-issued evidence the
// decision engine consumes as input: capability tokens, scoped approval
// tokens, and sanitizer receipts (spec §3).
package captoken

import (
	"github.com/flywheel-sh/fcpcore/pkg/canonical"
	"github.com/flywheel-sh/fcpcore/pkg/labels"
	"github.com/flywheel-sh/fcpcore/pkg/objectid"
)

// ApprovalScope names the kind of exception an ApprovalToken grants.
type ApprovalScope string

const (
	ScopeElevation        ApprovalScope = "Elevation"
	ScopeDeclassification ApprovalScope = "Declassification"
	ScopeExecution        ApprovalScope = "Execution"
)

// ApprovalToken is a time-bounded, zone-bound, content-addressed approval.
// Exactly one of the scope-specific field groups is meaningful, selected by
// Scope.
type ApprovalToken struct {
	Scope     ApprovalScope `json:"scope"`
	ZoneID    string        `json:"zone_id"`
	IssuedAt  int64         `json:"issued_at"`
	ExpiresAt int64         `json:"expires_at"`

	// Elevation fields.
	OperationID     string                `json:"operation_id,omitempty"`
	TargetIntegrity labels.IntegrityLevel `json:"target_integrity,omitempty"`

	// Declassification fields.
	FromZone              string                      `json:"from_zone,omitempty"`
	ToZone                string                      `json:"to_zone,omitempty"`
	TargetConfidentiality labels.ConfidentialityLevel `json:"target_confidentiality,omitempty"`
	ObjectIDs             []objectid.ObjectId         `json:"object_ids,omitempty"`

	// Execution fields.
	ConnectorID      string                 `json:"connector_id,omitempty"`
	MethodPattern    string                 `json:"method_pattern,omitempty"`
	RequestObjectID  *objectid.ObjectId     `json:"request_object_id,omitempty"`
	InputHash        string                 `json:"input_hash,omitempty"`
	InputConstraints map[string]interface{} `json:"input_constraints,omitempty"` // JSON-pointer -> expected value

	Signature []byte `json:"signature,omitempty"`
	KeyID     string `json:"key_id,omitempty"`
}

// Valid reports whether the token is not expired as of nowSecs. Signature
// verification is the caller's responsibility (the engine receives
// already-verified tokens per spec §3's "consumed by the engine" framing).
func (t ApprovalToken) Valid(nowSecs int64) bool {
	return nowSecs >= t.IssuedAt && nowSecs < t.ExpiresAt
}

// ObjectID derives the token's content-addressed id: canonical-CBOR of the
// whole value, BLAKE3-256, unscoped (spec §4.2). Two tokens with identical
// canonical encodings always derive the same id (testable invariant 4).
func (t ApprovalToken) ObjectID() (objectid.ObjectId, error) {
	body, err := canonical.CBOR(t)
	if err != nil {
		return objectid.ObjectId{}, err
	}
	return objectid.FromUnscopedBytes(body), nil
}

// SanitizerReceipt is evidence that named taint flags were cleared on a set
// of inputs.
type SanitizerReceipt struct {
	ReceiptID     string              `json:"receipt_id"`
	ClearedFlags  []labels.TaintFlag  `json:"cleared_flags"`
	CoveredInputs []objectid.ObjectId `json:"covered_inputs"`
	IssuedAt      int64               `json:"issued_at"`
	Signature     []byte              `json:"signature,omitempty"`
	KeyID         string              `json:"key_id,omitempty"`
}

// ObjectID derives the receipt's content-addressed id by hashing only the
// receipt_id bytes rather than the full receipt encoding: receipt_id is
// itself already a unique, off-core-minted identifier, and hashing only it
// keeps a receipt's derived id stable even if non-content fields (e.g.
// signature rotation) change without altering what was sanitized.
func (r SanitizerReceipt) ObjectID() objectid.ObjectId {
	return objectid.FromUnscopedBytes([]byte(r.ReceiptID))
}

// Covers reports whether the receipt's covered_inputs is a superset of
// inputSources (spec §4.2 sanitizer coverage; empty inputSources is
// vacuously covered).
func (r SanitizerReceipt) Covers(inputSources []objectid.ObjectId) bool {
	if len(inputSources) == 0 {
		return true
	}
	covered := make(map[objectid.ObjectId]struct{}, len(r.CoveredInputs))
	for _, id := range r.CoveredInputs {
		covered[id] = struct{}{}
	}
	for _, id := range inputSources {
		if _, ok := covered[id]; !ok {
			return false
		}
	}
	return true
}

// CapabilityToken is a signed bearer of {principal, zone, caps, validity},
// verified against the zone host key plus operation and resource URIs at
// the connector boundary (outside this core's pure evaluation — see
// pkg/rolegraph for capability-set resolution).
type CapabilityToken struct {
	PrincipalID string   `json:"principal_id"`
	ZoneID      string   `json:"zone_id"`
	Caps        []string `json:"caps"`
	IssuedAt    int64    `json:"issued_at"`
	ExpiresAt   int64    `json:"expires_at"`
	KeyID       string   `json:"key_id"`
}

func (t CapabilityToken) Valid(nowSecs int64) bool {
	return nowSecs >= t.IssuedAt && nowSecs < t.ExpiresAt
}

func (t CapabilityToken) HasCap(cap string) bool {
	for _, c := range t.Caps {
		if c == cap {
			return true
		}
	}
	return false
}
