package provenance_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flywheel-sh/fcpcore/pkg/labels"
	"github.com/flywheel-sh/fcpcore/pkg/objectid"
	"github.com/flywheel-sh/fcpcore/pkg/provenance"
)

func TestCanFlowTo(t *testing.T) {
	r := provenance.Record{
		CurrentZone:          "home",
		IntegrityLabel:       labels.IntegrityWork,
		ConfidentialityLabel: labels.ConfidentialityInternal,
	}

	require.Equal(t, provenance.FlowAllowed, r.CanFlowTo(labels.ZoneLabels{
		Integrity: labels.IntegrityWork, Confidentiality: labels.ConfidentialityInternal,
	}))
	require.Equal(t, provenance.FlowRequiresElevation, r.CanFlowTo(labels.ZoneLabels{
		Integrity: labels.IntegrityOwner, Confidentiality: labels.ConfidentialityInternal,
	}))
	require.Equal(t, provenance.FlowRequiresDeclassification, r.CanFlowTo(labels.ZoneLabels{
		Integrity: labels.IntegrityWork, Confidentiality: labels.ConfidentialityPublic,
	}))
	require.Equal(t, provenance.FlowRequiresBoth, r.CanFlowTo(labels.ZoneLabels{
		Integrity: labels.IntegrityOwner, Confidentiality: labels.ConfidentialityPublic,
	}))
}

func TestApplyElevationCappedAtZoneCeiling(t *testing.T) {
	r := provenance.Record{IntegrityLabel: labels.IntegrityWork}
	tokenID := objectid.ObjectId{0x01}

	out := r.ApplyElevation(tokenID, labels.IntegrityOwner, labels.IntegrityTeam, 100)
	require.Equal(t, labels.IntegrityTeam, out.IntegrityLabel, "elevation must not exceed the zone's integrity ceiling")
	require.Len(t, out.ElevationHistory, 1)
	require.Equal(t, tokenID, out.ElevationHistory[0].TokenID)

	// original record must be unmutated (value semantics).
	require.Equal(t, labels.IntegrityWork, r.IntegrityLabel)
}

func TestApplyTaintReduction(t *testing.T) {
	r := provenance.Record{
		TaintFlags:   labels.NewTaintFlags(labels.TaintPublicInput, labels.TaintUnverifiedLink),
		InputSources: []objectid.ObjectId{{0x01}, {0x02}},
	}
	receiptID := objectid.ObjectId{0xAA}
	out := r.ApplyTaintReduction(receiptID, []labels.TaintFlag{labels.TaintPublicInput}, []objectid.ObjectId{{0x01}}, 5)

	require.False(t, out.TaintFlags.Has(labels.TaintPublicInput))
	require.True(t, out.TaintFlags.Has(labels.TaintUnverifiedLink))
	require.True(t, r.TaintFlags.Has(labels.TaintPublicInput), "original record must be unmutated")
	require.Len(t, out.SanitizerHistory, 1)
}

func TestSanitizerCoverageVacuousWhenEmpty(t *testing.T) {
	require.True(t, provenance.SanitizerCoverage(nil, nil))
	require.True(t, provenance.SanitizerCoverage([]objectid.ObjectId{}, []objectid.ObjectId{{0x01}}))
}

func TestSanitizerCoverageInsufficient(t *testing.T) {
	a, b := objectid.ObjectId{0x01}, objectid.ObjectId{0x02}
	require.False(t, provenance.SanitizerCoverage([]objectid.ObjectId{a, b}, []objectid.ObjectId{a}))
	require.True(t, provenance.SanitizerCoverage([]objectid.ObjectId{a, b}, []objectid.ObjectId{a, b}))
}

func TestCanDriveOperation(t *testing.T) {
	malicious := provenance.Record{TaintFlags: labels.NewTaintFlags(labels.TaintPotentiallyMalicious)}
	err := malicious.CanDriveOperation(labels.SafetyTierSafe, "z")
	require.ErrorIs(t, err, provenance.Violation{Kind: provenance.ViolationPotentiallyMalicious})

	publicDangerous := provenance.Record{
		TaintFlags:     labels.NewTaintFlags(labels.TaintPublicInput),
		IntegrityLabel: labels.IntegrityOwner,
	}
	err = publicDangerous.CanDriveOperation(labels.SafetyTierDangerous, "z")
	require.ErrorIs(t, err, provenance.Violation{Kind: provenance.ViolationPublicInputDangerous})

	ok := provenance.Record{IntegrityLabel: labels.IntegrityOwner, CurrentZone: "z"}
	require.NoError(t, ok.CanDriveOperation(labels.SafetyTierForbidden, "z"))
}
