package decision

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flywheel-sh/fcpcore/pkg/captoken"
	"github.com/flywheel-sh/fcpcore/pkg/labels"
	"github.com/flywheel-sh/fcpcore/pkg/objectid"
	"github.com/flywheel-sh/fcpcore/pkg/provenance"
	"github.com/flywheel-sh/fcpcore/pkg/zonepolicy"
)

func permissivePolicy() zonepolicy.ZonePolicyObject {
	return zonepolicy.ZonePolicyObject{
		ZoneID: "zone-a",
		TransportPolicy: zonepolicy.TransportPolicy{
			AllowLAN: true, AllowDERP: true, AllowFunnel: true,
		},
		DecisionReceipts: zonepolicy.DefaultDecisionReceiptPolicy(),
	}
}

func baseInput() Input {
	return Input{
		ZoneID:          "zone-a",
		PrincipalID:     "principal-1",
		ConnectorID:     "connector-1",
		OperationID:     "op.read",
		CapabilityID:    "cap.read",
		SafetyTier:      labels.SafetyTierSafe,
		TransportMode:   zonepolicy.TransportLAN,
		CheckpointFresh: true,
		RevocationFresh: true,
		NowMs:           1_000_000,
		Provenance: provenance.Record{
			CurrentZone:    "zone-a",
			IntegrityLabel: labels.IntegrityOwner,
			TaintFlags:     labels.NewTaintFlags(),
		},
	}
}

// Scenario A — deny on transport.
func TestEvaluate_ScenarioA_TransportDeny(t *testing.T) {
	policy := permissivePolicy()
	policy.TransportPolicy.AllowDERP = false
	zoneDef := zonepolicy.ZoneDefinitionObject{ZoneID: "zone-a", Labels: labels.ZoneLabels{Integrity: labels.IntegrityOwner}}
	engine := New(policy, zoneDef, nil)

	in := baseInput()
	in.TransportMode = zonepolicy.TransportDERP

	d := engine.Evaluate(in)

	require.Equal(t, Deny, d.Outcome)
	require.Equal(t, ReasonTransportDERPForbidden, d.ReasonCode)
	require.Empty(t, d.Evidence)
}

// Scenario B — allow with elevation.
func TestEvaluate_ScenarioB_AllowWithElevation(t *testing.T) {
	policy := permissivePolicy()
	zoneDef := zonepolicy.ZoneDefinitionObject{ZoneID: "zone-a", Labels: labels.ZoneLabels{Integrity: labels.IntegrityOwner}}
	engine := New(policy, zoneDef, nil)

	in := baseInput()
	in.SafetyTier = labels.SafetyTierDangerous
	in.Provenance.IntegrityLabel = labels.IntegrityWork
	in.OperationID = "op.dangerous"

	tok := captoken.ApprovalToken{
		Scope:           captoken.ScopeElevation,
		ZoneID:          "zone-a",
		IssuedAt:        0,
		ExpiresAt:       2_000_000,
		OperationID:     "op.dangerous",
		TargetIntegrity: labels.IntegrityOwner,
	}
	in.ApprovalTokens = []captoken.ApprovalToken{tok}

	d := engine.Evaluate(in)

	require.Equal(t, Allow, d.Outcome)
	require.Equal(t, ReasonAllow, d.ReasonCode)

	tokID, err := tok.ObjectID()
	require.NoError(t, err)
	require.Equal(t, []objectid.ObjectId{tokID}, d.Evidence)
}

// Scenario C — sanitizer coverage insufficient.
func TestEvaluate_ScenarioC_SanitizerCoverageInsufficient(t *testing.T) {
	policy := permissivePolicy()
	zoneDef := zonepolicy.ZoneDefinitionObject{ZoneID: "zone-a", Labels: labels.ZoneLabels{Integrity: labels.IntegrityOwner}}
	engine := New(policy, zoneDef, nil)

	a := objectid.FromUnscopedBytes([]byte("input-A"))
	b := objectid.FromUnscopedBytes([]byte("input-B"))

	in := baseInput()
	in.SafetyTier = labels.SafetyTierDangerous
	in.Provenance.InputSources = []objectid.ObjectId{a, b}
	in.Provenance.TaintFlags = labels.NewTaintFlags(labels.TaintPublicInput)
	in.Provenance.IntegrityLabel = labels.IntegrityOwner

	in.SanitizerReceipts = []captoken.SanitizerReceipt{
		{
			ReceiptID:     "receipt-1",
			ClearedFlags:  []labels.TaintFlag{labels.TaintPublicInput},
			CoveredInputs: []objectid.ObjectId{a},
		},
	}

	d := engine.Evaluate(in)

	require.Equal(t, Deny, d.Outcome)
	require.Equal(t, ReasonTaintSanitizerCoverageInsufficient, d.ReasonCode)
}

func TestEvaluate_RevocationStaleShortCircuits(t *testing.T) {
	policy := permissivePolicy()
	zoneDef := zonepolicy.ZoneDefinitionObject{ZoneID: "zone-a"}
	engine := New(policy, zoneDef, nil)

	in := baseInput()
	in.RevocationFresh = false
	in.TransportMode = zonepolicy.TransportFunnel // would also fail later steps

	d := engine.Evaluate(in)
	require.Equal(t, ReasonRevocationStale, d.ReasonCode)
	require.Empty(t, d.Evidence)
}

func TestEvaluate_PlainAllow(t *testing.T) {
	policy := permissivePolicy()
	zoneDef := zonepolicy.ZoneDefinitionObject{ZoneID: "zone-a", Labels: labels.ZoneLabels{Integrity: labels.IntegrityUntrusted}}
	engine := New(policy, zoneDef, nil)

	in := baseInput()
	in.Provenance.IntegrityLabel = labels.IntegrityUntrusted

	d := engine.Evaluate(in)
	require.Equal(t, Allow, d.Outcome)
	require.Equal(t, ReasonAllow, d.ReasonCode)
	require.Equal(t, []objectid.ObjectId{}, d.Evidence)
}
