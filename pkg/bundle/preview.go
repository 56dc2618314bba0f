package bundle

import (
	"github.com/flywheel-sh/fcpcore/pkg/decision"
	"github.com/flywheel-sh/fcpcore/pkg/zonepolicy"
)

// PreviewClass is the coarse classification of a simulated decision: a deny
// whose reason code starts with "approval." counts as RequireApproval, not
// a plain Deny (spec §4.3.4).
type PreviewClass string

const (
	ClassAllow           PreviewClass = "Allow"
	ClassDeny            PreviewClass = "Deny"
	ClassRequireApproval PreviewClass = "RequireApproval"
)

func classify(d decision.Decision) PreviewClass {
	if d.Outcome == decision.Allow {
		return ClassAllow
	}
	if d.ReasonCode.IsRequireApproval() {
		return ClassRequireApproval
	}
	return ClassDeny
}

// PreviewDelta names how a sample's classification moved between before and
// after.
type PreviewDelta string

const (
	DeltaWouldAllow           PreviewDelta = "WouldAllow"
	DeltaWouldDeny            PreviewDelta = "WouldDeny"
	DeltaWouldRequireApproval PreviewDelta = "WouldRequireApproval"
	DeltaReasonChanged        PreviewDelta = "ReasonChanged"
)

func computeDelta(before, after decision.Decision) *PreviewDelta {
	beforeClass := classify(before)
	afterClass := classify(after)

	if beforeClass == afterClass {
		if before.ReasonCode != after.ReasonCode {
			d := DeltaReasonChanged
			return &d
		}
		return nil
	}

	var d PreviewDelta
	switch afterClass {
	case ClassAllow:
		d = DeltaWouldAllow
	case ClassRequireApproval:
		d = DeltaWouldRequireApproval
	default:
		d = DeltaWouldDeny
	}
	return &d
}

// PreviewEntry is the per-sample outcome of simulating one decision under
// both the before and after bundles.
type PreviewEntry struct {
	SampleID       string            `json:"sample_id"`
	Before         decision.Input    `json:"-"`
	After          decision.Input    `json:"-"`
	BeforeDecision decision.Decision `json:"before_decision"`
	AfterDecision  decision.Decision `json:"after_decision"`
	BeforeClass    PreviewClass      `json:"before_class"`
	AfterClass     PreviewClass      `json:"after_class"`
	Delta          *PreviewDelta     `json:"delta,omitempty"`
}

// PreviewSummary accumulates counts over every sample in a preview run.
type PreviewSummary struct {
	TotalSamples         int `json:"total_samples"`
	WouldAllow           int `json:"would_allow"`
	WouldDeny            int `json:"would_deny"`
	WouldRequireApproval int `json:"would_require_approval"`
	ReasonChanged        int `json:"reason_changed"`
	Unchanged            int `json:"unchanged"`
}

// Sample pairs a sample id with the decision input to simulate; the input,
// including its own zone_id, is evaluated unchanged under both bundles.
type Sample struct {
	SampleID string
	Input    decision.Input
}

// PreviewBundles runs decision.Engine.Evaluate for each sample under
// both the before and after bundles, classifying and diffing the result.
// Neither bundle's policy is mutated and no connector is invoked — this is
// a pure, read-only simulation over the resolved ZonePolicyObjects (spec
// §4.3.4).
func PreviewBundles(before, after ResolvedBundle, samples []Sample, schemas zonepolicy.SchemaRegistry) ([]PreviewEntry, PreviewSummary) {
	beforeEngine := decision.New(before.Policy, before.ZoneDef, schemas)
	afterEngine := decision.New(after.Policy, after.ZoneDef, schemas)

	entries := make([]PreviewEntry, 0, len(samples))
	summary := PreviewSummary{TotalSamples: len(samples)}

	for _, s := range samples {
		beforeDecision := beforeEngine.Evaluate(s.Input)
		afterDecision := afterEngine.Evaluate(s.Input)

		entry := PreviewEntry{
			SampleID:       s.SampleID,
			Before:         s.Input,
			After:          s.Input,
			BeforeDecision: beforeDecision,
			AfterDecision:  afterDecision,
			BeforeClass:    classify(beforeDecision),
			AfterClass:     classify(afterDecision),
			Delta:          computeDelta(beforeDecision, afterDecision),
		}
		entries = append(entries, entry)

		if entry.Delta == nil {
			summary.Unchanged++
			continue
		}
		switch *entry.Delta {
		case DeltaWouldAllow:
			summary.WouldAllow++
		case DeltaWouldDeny:
			summary.WouldDeny++
		case DeltaWouldRequireApproval:
			summary.WouldRequireApproval++
		case DeltaReasonChanged:
			summary.ReasonChanged++
		}
	}

	return entries, summary
}
