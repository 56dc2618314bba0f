//go:build property
// +build property

package decision_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/flywheel-sh/fcpcore/pkg/decision"
	"github.com/flywheel-sh/fcpcore/pkg/labels"
	"github.com/flywheel-sh/fcpcore/pkg/provenance"
	"github.com/flywheel-sh/fcpcore/pkg/zonepolicy"
)

func fixedPolicy() (zonepolicy.ZonePolicyObject, zonepolicy.ZoneDefinitionObject) {
	policy := zonepolicy.ZonePolicyObject{
		ZoneID: "zone-a",
		TransportPolicy: zonepolicy.TransportPolicy{
			AllowLAN: true, AllowDERP: true, AllowFunnel: true,
		},
	}
	zoneDef := zonepolicy.ZoneDefinitionObject{ZoneID: "zone-a", Labels: labels.ZoneLabels{Integrity: labels.IntegrityUntrusted}}
	return policy, zoneDef
}

// TestEvaluateIsReferentiallyTransparent asserts invariant 2: evaluating the
// same (engine, input) value twice always yields the same decision.
func TestEvaluateIsReferentiallyTransparent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	policy, zoneDef := fixedPolicy()
	engine := decision.New(policy, zoneDef, nil)

	properties.Property("Evaluate is deterministic for a fixed input", prop.ForAll(
		func(tierRaw int, checkpointFresh, revocationFresh bool) bool {
			in := decision.Input{
				ZoneID:          "zone-a",
				SafetyTier:      labels.SafetyTier(tierRaw % 5),
				TransportMode:   zonepolicy.TransportLAN,
				CheckpointFresh: checkpointFresh,
				RevocationFresh: revocationFresh,
				NowMs:           1000,
				Provenance: provenance.Record{
					CurrentZone: "zone-a",
					TaintFlags:  labels.NewTaintFlags(),
				},
			}
			first := engine.Evaluate(in)
			second := engine.Evaluate(in)
			return first.Outcome == second.Outcome && first.ReasonCode == second.ReasonCode
		},
		gen.Int(), gen.Bool(), gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestEvaluateShortCircuitsOnFreshnessFirst asserts invariant 3: an unfresh
// revocation frontier always denies with revocation.stale_frontier
// regardless of any other input field.
func TestEvaluateShortCircuitsOnFreshnessFirst(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	policy, zoneDef := fixedPolicy()
	engine := decision.New(policy, zoneDef, nil)

	properties.Property("revocation_fresh=false always wins", prop.ForAll(
		func(tierRaw int, transportRaw int) bool {
			modes := []zonepolicy.TransportMode{zonepolicy.TransportLAN, zonepolicy.TransportDERP, zonepolicy.TransportFunnel}
			in := decision.Input{
				ZoneID:          "zone-a",
				SafetyTier:      labels.SafetyTier(tierRaw % 5),
				TransportMode:   modes[((transportRaw%3)+3)%3],
				CheckpointFresh: true,
				RevocationFresh: false,
				NowMs:           1000,
				Provenance: provenance.Record{
					CurrentZone: "zone-a",
					TaintFlags:  labels.NewTaintFlags(),
				},
			}
			d := engine.Evaluate(in)
			return d.Outcome == decision.Deny && d.ReasonCode == decision.ReasonRevocationStale
		},
		gen.Int(), gen.Int(),
	))

	properties.TestingRun(t)
}
