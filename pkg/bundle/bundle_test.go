package bundle_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flywheel-sh/fcpcore/pkg/bundle"
	"github.com/flywheel-sh/fcpcore/pkg/decision"
	"github.com/flywheel-sh/fcpcore/pkg/labels"
	"github.com/flywheel-sh/fcpcore/pkg/provenance"
	"github.com/flywheel-sh/fcpcore/pkg/zonepolicy"
)

func TestComputeBundleHashDeterministic(t *testing.T) {
	b := bundle.PolicyBundle{
		Format:        "fcp-policy-bundle",
		SchemaVersion: "1.0",
		BundleID:      "bundle-1",
		ZoneID:        "zone-a",
		HashAlgo:      "blake3-256",
		Policies: []bundle.PolicyRef{
			{ObjectID: "b", SchemaID: "s1", ObjectHash: "blake3-256:" + pad("b")},
			{ObjectID: "a", SchemaID: "s1", ObjectHash: "blake3-256:" + pad("a")},
		},
	}
	h1, err := bundle.ComputeBundleHash(b)
	require.NoError(t, err)
	require.Regexp(t, `^blake3-256:[0-9a-f]{64}$`, h1)

	// reordering the policies must not change the hash.
	b.Policies[0], b.Policies[1] = b.Policies[1], b.Policies[0]
	h2, err := bundle.ComputeBundleHash(b)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func pad(s string) string {
	out := make([]byte, 64)
	copy(out, []byte(s))
	for i := len(s); i < 64; i++ {
		out[i] = '0'
	}
	return string(out)
}

// Scenario D — bundle risk: enabling DERP transport is a High severity
// transport_derp_enabled flag, and nothing else.
func TestClassifyRisk_ScenarioD_TransportDERPEnabled(t *testing.T) {
	before := zonepolicy.ZonePolicyObject{TransportPolicy: zonepolicy.TransportPolicy{AllowDERP: false}}
	after := zonepolicy.ZonePolicyObject{TransportPolicy: zonepolicy.TransportPolicy{AllowDERP: true}}

	diff, err := bundle.Diff(
		bundle.ResolvedBundle{ZoneID: "zone-a", Policy: before},
		bundle.ResolvedBundle{ZoneID: "zone-a", Policy: after},
	)
	require.NoError(t, err)

	risk := bundle.ClassifyRisk(diff)
	require.Equal(t, map[bundle.PolicyRiskCode]bundle.Severity{
		bundle.RiskTransportDERPEnabled: bundle.SeverityHigh,
	}, risk.Flags)
}

// Scenario E — preview delta: adding a capability_deny pattern turns an
// Allow into a Deny for a matching sample.
func TestPreviewBundles_ScenarioE_WouldDeny(t *testing.T) {
	before := bundle.ResolvedBundle{
		ZoneID: "zone-a",
		Policy: zonepolicy.ZonePolicyObject{
			ZoneID:          "zone-a",
			TransportPolicy: zonepolicy.TransportPolicy{AllowLAN: true},
		},
		ZoneDef: zonepolicy.ZoneDefinitionObject{ZoneID: "zone-a", Labels: labels.ZoneLabels{Integrity: labels.IntegrityUntrusted}},
	}
	after := before
	after.Policy.CapabilityPatterns = zonepolicy.PatternList{Deny: []string{"cap.all"}}

	sample := bundle.Sample{
		SampleID: "sample-1",
		Input: decision.Input{
			ZoneID:          "zone-a",
			CapabilityID:    "cap.all",
			SafetyTier:      labels.SafetyTierSafe,
			TransportMode:   zonepolicy.TransportLAN,
			CheckpointFresh: true,
			RevocationFresh: true,
			Provenance: provenance.Record{
				CurrentZone: "zone-a",
				TaintFlags:  labels.NewTaintFlags(),
			},
		},
	}

	entries, summary := bundle.PreviewBundles(before, after, []bundle.Sample{sample}, nil)

	require.Len(t, entries, 1)
	require.Equal(t, bundle.ClassAllow, entries[0].BeforeClass)
	require.Equal(t, bundle.ClassDeny, entries[0].AfterClass)
	require.NotNil(t, entries[0].Delta)
	require.Equal(t, bundle.DeltaWouldDeny, *entries[0].Delta)
	require.Equal(t, 1, summary.WouldDeny)
	require.Equal(t, 0, summary.Unchanged)
}
