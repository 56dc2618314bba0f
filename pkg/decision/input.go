package decision

import (
	"encoding/json"

	"github.com/flywheel-sh/fcpcore/pkg/captoken"
	"github.com/flywheel-sh/fcpcore/pkg/labels"
	"github.com/flywheel-sh/fcpcore/pkg/objectid"
	"github.com/flywheel-sh/fcpcore/pkg/provenance"
	"github.com/flywheel-sh/fcpcore/pkg/zonepolicy"
)

// Input is PolicyDecisionInput (spec §4.1): everything one evaluation
// needs, borrowed by value — the engine never mutates it.
type Input struct {
	RequestObjectID objectid.ObjectId
	ZoneID          string
	PrincipalID     string
	ConnectorID     string
	OperationID     string
	CapabilityID    string
	SafetyTier      labels.SafetyTier

	Provenance        provenance.Record
	ApprovalTokens    []captoken.ApprovalToken
	SanitizerReceipts []captoken.SanitizerReceipt

	RequestInputJSON json.RawMessage
	RequestInputHash string
	RelatedObjectIDs []objectid.ObjectId

	TransportMode zonepolicy.TransportMode

	CheckpointFresh bool
	RevocationFresh bool

	ExecutionApprovalRequired bool

	NowMs int64

	PostureAttestation *zonepolicy.PostureAttestation
}

// Decision is PolicyDecision (spec §4.1): the outcome of one evaluation.
type Decision struct {
	Outcome    Outcome
	ReasonCode ReasonCode
	Evidence   []objectid.ObjectId
}
