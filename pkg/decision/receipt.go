package decision

import (
	"github.com/flywheel-sh/fcpcore/pkg/canonical"
	"github.com/flywheel-sh/fcpcore/pkg/fcpcrypto"
	"github.com/flywheel-sh/fcpcore/pkg/labels"
	"github.com/flywheel-sh/fcpcore/pkg/objecthdr"
	"github.com/flywheel-sh/fcpcore/pkg/objectid"
	"github.com/flywheel-sh/fcpcore/pkg/provenance"
	"github.com/flywheel-sh/fcpcore/pkg/zonepolicy"
)

// ReceiptSchema is the stable schema id stamped on every DecisionReceipt.
var ReceiptSchema = objectid.SchemaId{Namespace: "fcp.core", Name: "DecisionReceipt", Version: "1.0.0"}

// Receipt is the signed, content-addressed record of one evaluation.
type Receipt struct {
	Header     objecthdr.Header    `json:"header"`
	RequestID  objectid.ObjectId   `json:"request_id"`
	Outcome    Outcome             `json:"outcome"`
	ReasonCode ReasonCode          `json:"reason_code"`
	Evidence   []objectid.ObjectId `json:"evidence"`
	Signature  []byte              `json:"signature"`
	KeyID      string              `json:"key_id"`
}

// ObjectID derives the receipt's content-addressed id from its unsigned body.
func (r Receipt) ObjectID() (objectid.ObjectId, error) {
	unsigned := r
	unsigned.Signature = nil
	body, err := canonical.CBOR(unsigned)
	if err != nil {
		return objectid.ObjectId{}, err
	}
	return objectid.FromUnscopedBytes(body), nil
}

// ShouldEmit reports whether policy calls for emitting a receipt with this
// outcome (spec §4.1 "Receipt construction"): default is emit on deny, not
// on allow.
func ShouldEmit(policy zonepolicy.DecisionReceiptPolicy, outcome Outcome) bool {
	if outcome == Allow {
		return policy.EmitOnAllow
	}
	return policy.EmitOnDeny
}

// BuildReceipt constructs and signs a DecisionReceipt for a completed
// evaluation. zoneID/nowSecs seed a fresh ObjectHeader bearing a clean
// Provenance(zone) — the receipt's own provenance, not the evaluated
// request's.
func BuildReceipt(signer fcpcrypto.Signer, requestID objectid.ObjectId, zoneID string, nowSecs int64, d Decision) (Receipt, error) {
	header := objecthdr.Header{
		Schema:    ReceiptSchema,
		ZoneID:    provenance.ZoneId(zoneID),
		CreatedAt: nowSecs,
		Provenance: provenance.Record{
			CurrentZone: provenance.ZoneId(zoneID),
			TaintFlags:  labels.NewTaintFlags(),
		},
	}

	r := Receipt{
		Header:     header,
		RequestID:  requestID,
		Outcome:    d.Outcome,
		ReasonCode: d.ReasonCode,
		Evidence:   d.Evidence,
		KeyID:      signer.KeyID(),
	}

	unsigned := r
	unsigned.Signature = nil
	signingBytes, err := fcpcrypto.SigningBytes(ReceiptSchema.String(), unsigned)
	if err != nil {
		return Receipt{}, err
	}
	sig, err := signer.Sign(signingBytes)
	if err != nil {
		return Receipt{}, err
	}
	r.Signature = sig
	return r, nil
}
