package decision

import (
	"strings"

	"github.com/flywheel-sh/fcpcore/pkg/captoken"
	"github.com/flywheel-sh/fcpcore/pkg/glob"
	"github.com/flywheel-sh/fcpcore/pkg/labels"
	"github.com/flywheel-sh/fcpcore/pkg/objectid"
	"github.com/flywheel-sh/fcpcore/pkg/provenance"
	"github.com/flywheel-sh/fcpcore/pkg/zonepolicy"
)

// Engine is a value type over a ZonePolicyObject: pure and thread-safe —
// concurrent evaluations on distinct inputs never interact (spec §5).
type Engine struct {
	Policy  zonepolicy.ZonePolicyObject
	ZoneDef zonepolicy.ZoneDefinitionObject
	Schemas zonepolicy.SchemaRegistry
}

// New builds an Engine over a policy and its zone's structural definition.
func New(policy zonepolicy.ZonePolicyObject, zoneDef zonepolicy.ZoneDefinitionObject, schemas zonepolicy.SchemaRegistry) Engine {
	return Engine{Policy: policy, ZoneDef: zoneDef, Schemas: schemas}
}

func deny(code ReasonCode, evidence []objectid.ObjectId) Decision {
	if evidence == nil {
		evidence = []objectid.ObjectId{}
	}
	return Decision{Outcome: Deny, ReasonCode: code, Evidence: evidence}
}

// Evaluate maps (Engine, Input) deterministically to a Decision, following
// the normative short-circuit evaluation order of spec §4.1. No error is
// returned: every failure mode is encoded as a ReasonCode (spec §4.1
// "Failure model").
func (e Engine) Evaluate(in Input) Decision {
	nowSecs := in.NowMs / 1000
	var evidence []objectid.ObjectId

	// 1. revocation freshness.
	if !in.RevocationFresh {
		return deny(ReasonRevocationStale, evidence)
	}

	// 2. checkpoint freshness.
	if !in.CheckpointFresh {
		return deny(ReasonCheckpointStale, evidence)
	}

	// 3. transport policy.
	if !e.Policy.TransportPolicy.Permits(in.TransportMode) {
		switch in.TransportMode {
		case zonepolicy.TransportLAN:
			return deny(ReasonTransportLANForbidden, evidence)
		case zonepolicy.TransportDERP:
			return deny(ReasonTransportDERPForbidden, evidence)
		case zonepolicy.TransportFunnel:
			return deny(ReasonTransportFunnelForbidden, evidence)
		}
	}

	// 4. principal / connector / capability pattern lists.
	if allowed, denied := e.Policy.PrincipalPatterns.Check(in.PrincipalID); denied {
		return deny(ReasonZonePolicyPrincipalDenied, evidence)
	} else if !allowed {
		return deny(ReasonZonePolicyPrincipalNotAllowed, evidence)
	}
	if allowed, denied := e.Policy.ConnectorPatterns.Check(in.ConnectorID); denied {
		return deny(ReasonZonePolicyConnectorDenied, evidence)
	} else if !allowed {
		return deny(ReasonZonePolicyConnectorNotAllowed, evidence)
	}
	if allowed, denied := e.Policy.CapabilityPatterns.Check(in.CapabilityID); denied {
		return deny(ReasonZonePolicyCapabilityDenied, evidence)
	} else if !allowed {
		return deny(ReasonZonePolicyCapabilityNotAllowed, evidence)
	}

	// 5. posture requirements.
	if e.Policy.RequiresPosture != nil {
		switch e.Policy.RequiresPosture.Check(in.PostureAttestation, e.Schemas, nowSecs) {
		case zonepolicy.PostureAttestationMissing:
			return deny(ReasonPostureAttestationMissing, evidence)
		case zonepolicy.PostureAttestationExpired:
			return deny(ReasonPostureAttestationExpired, evidence)
		case zonepolicy.PostureAttestationInvalid:
			return deny(ReasonPostureAttestationInvalid, evidence)
		case zonepolicy.PostureVerifierNotAllowed:
			return deny(ReasonPostureVerifierNotAllowed, evidence)
		case zonepolicy.PostureRequirementNotMet:
			return deny(ReasonPostureRequirementNotMet, evidence)
		}
	}

	// 6. capability ceiling.
	if !e.Policy.CapabilityCeilingPermits(in.CapabilityID) {
		return deny(ReasonCapabilityInsufficient, evidence)
	}

	// 7. apply sanitizer receipts to a working provenance clone.
	working := in.Provenance.Clone()
	for _, receipt := range in.SanitizerReceipts {
		if receipt.ReceiptID == "" {
			return deny(ReasonTaintSanitizerInvalid, evidence)
		}
		if !receipt.Covers(working.InputSources) {
			return deny(ReasonTaintSanitizerCoverageInsufficient, evidence)
		}
		working = working.ApplyTaintReduction(receipt.ObjectID(), receipt.ClearedFlags, receipt.CoveredInputs, nowSecs)
		evidence = append(evidence, receipt.ObjectID())
	}

	// 8. taint-tier gates on the working provenance.
	if in.SafetyTier.AtLeast(labels.SafetyTierRisky) && working.TaintFlags.Has(labels.TaintUnverifiedLink) {
		return deny(ReasonTaintUnverifiedLinkRisky, evidence)
	}
	if in.SafetyTier.AtLeast(labels.SafetyTierDangerous) && working.TaintFlags.Has(labels.TaintPublicInput) {
		return deny(ReasonTaintPublicInputDangerous, evidence)
	}

	// 9. flow check.
	targetLabels := e.ZoneDef.Labels
	flow := working.CanFlowTo(targetLabels)

	if flow == provenance.FlowRequiresElevation || flow == provenance.FlowRequiresBoth {
		tok, ok := findElevation(in.ApprovalTokens, in.OperationID, labels.IntegrityFromZone(targetLabels), nowSecs)
		if !ok {
			return deny(ReasonApprovalMissingElevation, evidence)
		}
		tokID, err := tok.ObjectID()
		if err != nil {
			return deny(ReasonApprovalTokenInvalid, evidence)
		}
		working = working.ApplyElevation(tokID, tok.TargetIntegrity, labels.IntegrityFromZone(targetLabels), nowSecs)
		evidence = append(evidence, tokID)
	}

	if flow == provenance.FlowRequiresDeclassification || flow == provenance.FlowRequiresBoth {
		tok, ok := findDeclassification(in.ApprovalTokens, string(working.CurrentZone), in.ZoneID,
			labels.ConfidentialityFromZone(targetLabels), working.ConfidentialityLabel,
			in.RequestObjectID, in.RelatedObjectIDs, nowSecs)
		if !ok {
			return deny(ReasonApprovalMissingDeclassification, evidence)
		}
		tokID, err := tok.ObjectID()
		if err != nil {
			return deny(ReasonApprovalTokenInvalid, evidence)
		}
		working = working.ApplyDeclassification(tokID, tok.TargetConfidentiality, nowSecs)
		evidence = append(evidence, tokID)
	}

	// 10. execution approval.
	if in.ExecutionApprovalRequired {
		tok, found, mismatch := findExecution(in.ApprovalTokens, in.ZoneID, in.ConnectorID, in.OperationID,
			in.RequestObjectID, in.RequestInputHash, in.RequestInputJSON, nowSecs)
		if mismatch {
			return deny(ReasonApprovalExecutionScopeMismatch, evidence)
		}
		if !found {
			return deny(ReasonApprovalMissingExecution, evidence)
		}
		tokID, err := tok.ObjectID()
		if err != nil {
			return deny(ReasonApprovalTokenInvalid, evidence)
		}
		evidence = append(evidence, tokID)
	}

	// 11. last defense.
	if err := working.CanDriveOperation(in.SafetyTier, provenance.ZoneId(in.ZoneID)); err != nil {
		if violation, ok := err.(provenance.Violation); ok {
			return deny(fromViolation(violation.Kind), evidence)
		}
		return deny(ReasonApprovalTokenInvalid, evidence)
	}

	if evidence == nil {
		evidence = []objectid.ObjectId{}
	}
	return Decision{Outcome: Allow, ReasonCode: ReasonAllow, Evidence: evidence}
}

func fromViolation(kind provenance.ViolationKind) ReasonCode {
	switch kind {
	case provenance.ViolationPotentiallyMalicious:
		return ReasonTaintMaliciousInput
	case provenance.ViolationPublicInputDangerous:
		return ReasonTaintPublicInputDangerous
	case provenance.ViolationUnverifiedLinkRisky:
		return ReasonTaintUnverifiedLinkRisky
	case provenance.ViolationInsufficientIntegrity:
		return ReasonIntegrityInsufficient
	case provenance.ViolationCrossZoneUnapproved:
		return ReasonTaintCrossZoneUnapproved
	default:
		return ReasonApprovalTokenInvalid
	}
}

func findElevation(tokens []captoken.ApprovalToken, opID string, minIntegrity labels.IntegrityLevel, nowSecs int64) (captoken.ApprovalToken, bool) {
	for _, t := range tokens {
		if t.Scope != captoken.ScopeElevation || !t.Valid(nowSecs) {
			continue
		}
		if t.OperationID != opID {
			continue
		}
		if t.TargetIntegrity < minIntegrity {
			continue
		}
		return t, true
	}
	return captoken.ApprovalToken{}, false
}

func findDeclassification(tokens []captoken.ApprovalToken, fromZone, toZone string, targetConfidentiality, currentConfidentiality labels.ConfidentialityLevel, requestObjectID objectid.ObjectId, relatedObjectIDs []objectid.ObjectId, nowSecs int64) (captoken.ApprovalToken, bool) {
	for _, t := range tokens {
		if t.Scope != captoken.ScopeDeclassification || !t.Valid(nowSecs) {
			continue
		}
		if t.FromZone != fromZone || t.ToZone != toZone {
			continue
		}
		if t.TargetConfidentiality != targetConfidentiality {
			continue
		}
		if t.TargetConfidentiality > currentConfidentiality {
			continue
		}
		if !declassificationCoversObjects(t.ObjectIDs, requestObjectID, relatedObjectIDs) {
			continue
		}
		return t, true
	}
	return captoken.ApprovalToken{}, false
}

func declassificationCoversObjects(tokenObjectIDs []objectid.ObjectId, requestObjectID objectid.ObjectId, relatedObjectIDs []objectid.ObjectId) bool {
	set := make(map[objectid.ObjectId]struct{}, len(tokenObjectIDs))
	for _, id := range tokenObjectIDs {
		set[id] = struct{}{}
	}
	if len(relatedObjectIDs) == 0 {
		_, ok := set[requestObjectID]
		return ok
	}
	for _, id := range relatedObjectIDs {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

func findExecution(tokens []captoken.ApprovalToken, zoneID, connectorID, operationID string, requestObjectID objectid.ObjectId, inputHash string, requestInput []byte, nowSecs int64) (tok captoken.ApprovalToken, found bool, mismatch bool) {
	for _, t := range tokens {
		if t.Scope != captoken.ScopeExecution || !t.Valid(nowSecs) {
			continue
		}
		if t.ZoneID != zoneID {
			continue
		}
		if t.ConnectorID != connectorID {
			continue
		}
		if !glob.Match(t.MethodPattern, operationID) {
			continue
		}
		if t.RequestObjectID != nil {
			if *t.RequestObjectID != requestObjectID {
				mismatch = true
				continue
			}
		}
		if t.InputHash != "" {
			if !strings.EqualFold(t.InputHash, inputHash) {
				mismatch = true
				continue
			}
		}
		if len(t.InputConstraints) > 0 {
			if !inputConstraintsMatch(t.InputConstraints, requestInput) {
				mismatch = true
				continue
			}
		}
		return t, true, false
	}
	return captoken.ApprovalToken{}, false, mismatch
}
