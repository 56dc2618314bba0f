// Package provenance implements the label/taint arithmetic the decision
// engine consumes: flow checks between zones, elevation/declassification
// application, taint reduction, and the final can-drive-operation gate
// (spec §4.2). Every mutating method operates on a value receiver and
// returns a new record — the engine clones the caller's record and
// mutates only the clone (spec §5).
package provenance

import (
	"fmt"

	"github.com/flywheel-sh/fcpcore/pkg/labels"
	"github.com/flywheel-sh/fcpcore/pkg/objectid"
)

// ZoneId identifies an administrative boundary.
type ZoneId string

// AppliedApproval records one elevation or declassification application in
// a provenance record's append-only history.
type AppliedApproval struct {
	TokenID   objectid.ObjectId
	AppliedAt int64 // epoch-seconds
}

// AppliedSanitizer records one sanitizer receipt application.
type AppliedSanitizer struct {
	ReceiptID     objectid.ObjectId
	ClearedFlags  []labels.TaintFlag
	CoveredInputs []objectid.ObjectId
	AppliedAt     int64
}

// Record carries current_zone, integrity/confidentiality labels, taint
// flags, input sources, and an append-only history of applied approvals
// and sanitizer receipts (spec §3).
type Record struct {
	CurrentZone             ZoneId
	IntegrityLabel          labels.IntegrityLevel
	ConfidentialityLabel    labels.ConfidentialityLevel
	TaintFlags              labels.TaintFlags
	InputSources            []objectid.ObjectId
	ElevationHistory        []AppliedApproval
	DeclassificationHistory []AppliedApproval
	SanitizerHistory        []AppliedSanitizer
}

// Clone returns a deep, independent copy.
func (r Record) Clone() Record {
	out := r
	out.TaintFlags = r.TaintFlags.Clone()
	out.InputSources = append([]objectid.ObjectId(nil), r.InputSources...)
	out.ElevationHistory = append([]AppliedApproval(nil), r.ElevationHistory...)
	out.DeclassificationHistory = append([]AppliedApproval(nil), r.DeclassificationHistory...)
	out.SanitizerHistory = append([]AppliedSanitizer(nil), r.SanitizerHistory...)
	return out
}

// FlowCheckResult is the outcome of comparing a record's labels against a
// target zone's label ceiling.
type FlowCheckResult int

const (
	FlowAllowed FlowCheckResult = iota
	FlowRequiresElevation
	FlowRequiresDeclassification
	FlowRequiresBoth
)

func (f FlowCheckResult) String() string {
	switch f {
	case FlowAllowed:
		return "allowed"
	case FlowRequiresElevation:
		return "requires_elevation"
	case FlowRequiresDeclassification:
		return "requires_declassification"
	case FlowRequiresBoth:
		return "requires_both"
	default:
		return "unknown"
	}
}

// CanFlowTo compares (current_zone, labels) against (target_zone,
// target_labels): an integrity shortfall requires elevation; a
// confidentiality increase toward more-public requires declassification.
func (r Record) CanFlowTo(target labels.ZoneLabels) FlowCheckResult {
	needsElevation := r.IntegrityLabel < labels.IntegrityFromZone(target)
	needsDeclass := r.ConfidentialityLabel < labels.ConfidentialityFromZone(target)

	switch {
	case needsElevation && needsDeclass:
		return FlowRequiresBoth
	case needsElevation:
		return FlowRequiresElevation
	case needsDeclass:
		return FlowRequiresDeclassification
	default:
		return FlowAllowed
	}
}

// ApplyElevation raises integrity_label to targetIntegrity, capped at the
// zone's integrity ceiling (the hard limit spec §4.2 calls out), and
// appends to elevation history.
func (r Record) ApplyElevation(tokenID objectid.ObjectId, targetIntegrity labels.IntegrityLevel, zoneCeiling labels.IntegrityLevel, now int64) Record {
	out := r.Clone()
	newLevel := targetIntegrity
	if newLevel > zoneCeiling {
		newLevel = zoneCeiling
	}
	if newLevel > out.IntegrityLabel {
		out.IntegrityLabel = newLevel
	}
	out.ElevationHistory = append(out.ElevationHistory, AppliedApproval{TokenID: tokenID, AppliedAt: now})
	return out
}

// ApplyDeclassification lowers confidentiality_label to target and appends
// to declassification history.
func (r Record) ApplyDeclassification(tokenID objectid.ObjectId, target labels.ConfidentialityLevel, now int64) Record {
	out := r.Clone()
	if target < out.ConfidentialityLabel {
		out.ConfidentialityLabel = target
	}
	out.DeclassificationHistory = append(out.DeclassificationHistory, AppliedApproval{TokenID: tokenID, AppliedAt: now})
	return out
}

// ApplyTaintReduction removes each cleared flag from taint_flags and
// records the covered input set.
func (r Record) ApplyTaintReduction(receiptID objectid.ObjectId, clearedFlags []labels.TaintFlag, coveredInputs []objectid.ObjectId, now int64) Record {
	out := r.Clone()
	for _, f := range clearedFlags {
		out.TaintFlags = out.TaintFlags.Remove(f)
	}
	out.SanitizerHistory = append(out.SanitizerHistory, AppliedSanitizer{
		ReceiptID:     receiptID,
		ClearedFlags:  append([]labels.TaintFlag(nil), clearedFlags...),
		CoveredInputs: append([]objectid.ObjectId(nil), coveredInputs...),
		AppliedAt:     now,
	})
	return out
}

// Violation is the internal taxonomy mapped to DecisionReasonCode values
// via FromViolation in pkg/decision.
type Violation struct {
	Kind ViolationKind
}

func (v Violation) Error() string { return fmt.Sprintf("provenance violation: %s", v.Kind) }

type ViolationKind string

const (
	ViolationPotentiallyMalicious  ViolationKind = "potentially_malicious"
	ViolationPublicInputDangerous  ViolationKind = "public_input_dangerous"
	ViolationUnverifiedLinkRisky   ViolationKind = "unverified_link_risky"
	ViolationInsufficientIntegrity ViolationKind = "insufficient_integrity"
	ViolationCrossZoneUnapproved   ViolationKind = "cross_zone_unapproved_for_dangerous_operation"
)

// CanDriveOperation is the last defense before a decision is allowed:
// PotentiallyMalicious is disallowed at any tier; PublicInput is
// disallowed at Dangerous+; UnverifiedLink at Risky+; integrity below the
// tier's floor is insufficient; cross-zone taint without any approval
// history is disallowed for Dangerous+ operations.
func (r Record) CanDriveOperation(tier labels.SafetyTier, homeZone ZoneId) error {
	if r.TaintFlags.Has(labels.TaintPotentiallyMalicious) {
		return Violation{Kind: ViolationPotentiallyMalicious}
	}
	if tier.AtLeast(labels.SafetyTierDangerous) && r.TaintFlags.Has(labels.TaintPublicInput) {
		return Violation{Kind: ViolationPublicInputDangerous}
	}
	if tier.AtLeast(labels.SafetyTierRisky) && r.TaintFlags.Has(labels.TaintUnverifiedLink) {
		return Violation{Kind: ViolationUnverifiedLinkRisky}
	}
	if r.IntegrityLabel < labels.IntegrityFromTier(tier) {
		return Violation{Kind: ViolationInsufficientIntegrity}
	}
	crossedZone := r.CurrentZone != homeZone
	hasApprovalHistory := len(r.ElevationHistory) > 0 || len(r.DeclassificationHistory) > 0
	if crossedZone && !hasApprovalHistory && tier.AtLeast(labels.SafetyTierDangerous) {
		return Violation{Kind: ViolationCrossZoneUnapproved}
	}
	return nil
}

// SanitizerCoverage reports whether coveredInputs is a superset of
// inputSources. Empty inputSources is vacuously covered (spec §4.2).
func SanitizerCoverage(inputSources, coveredInputs []objectid.ObjectId) bool {
	if len(inputSources) == 0 {
		return true
	}
	covered := make(map[objectid.ObjectId]struct{}, len(coveredInputs))
	for _, id := range coveredInputs {
		covered[id] = struct{}{}
	}
	for _, id := range inputSources {
		if _, ok := covered[id]; !ok {
			return false
		}
	}
	return true
}
