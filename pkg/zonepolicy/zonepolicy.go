// Package zonepolicy defines ZonePolicyObject and ZoneDefinitionObject, the
// authoritative per-zone policy the decision engine evaluates against
// (spec §3), plus the pattern-list and transport-policy checks step 3–4 of
// the evaluation order (spec §4.1) need.
package zonepolicy

import (
	"github.com/flywheel-sh/fcpcore/pkg/glob"
	"github.com/flywheel-sh/fcpcore/pkg/labels"
)

// TransportMode is the channel an invocation travels over.
type TransportMode string

const (
	TransportLAN    TransportMode = "lan"
	TransportDERP   TransportMode = "derp"
	TransportFunnel TransportMode = "funnel"
)

// TransportPolicy gates which transport modes a zone permits.
type TransportPolicy struct {
	AllowLAN    bool `json:"allow_lan"`
	AllowDERP   bool `json:"allow_derp"`
	AllowFunnel bool `json:"allow_funnel"`
}

// Permits reports whether mode is allowed by the policy.
func (t TransportPolicy) Permits(mode TransportMode) bool {
	switch mode {
	case TransportLAN:
		return t.AllowLAN
	case TransportDERP:
		return t.AllowDERP
	case TransportFunnel:
		return t.AllowFunnel
	default:
		return false
	}
}

// DecisionReceiptPolicy controls receipt emission (spec §4.1 "Receipt
// construction"); default is emit on deny, not on allow.
type DecisionReceiptPolicy struct {
	EmitOnAllow bool `json:"emit_on_allow"`
	EmitOnDeny  bool `json:"emit_on_deny"`
}

// DefaultDecisionReceiptPolicy matches spec's stated default.
func DefaultDecisionReceiptPolicy() DecisionReceiptPolicy {
	return DecisionReceiptPolicy{EmitOnAllow: false, EmitOnDeny: true}
}

// PatternList is an allow/deny pair of glob patterns for one dimension
// (principal, connector, or capability).
type PatternList struct {
	Allow []string `json:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty"`
}

// Check evaluates value against the list per spec §4.1 step 4: denies
// first, then — if the allow list is non-empty — requires a match.
// allowed=false, denied=true reports a deny; allowed=false, denied=false
// (only possible with a non-empty Allow) reports a not_allowed failure.
func (p PatternList) Check(value string) (allowed bool, denied bool) {
	if glob.MatchAny(p.Deny, value) {
		return false, true
	}
	if len(p.Allow) > 0 && !glob.MatchAny(p.Allow, value) {
		return false, false
	}
	return true, false
}

// UsageBudget bounds invocation volume for a zone (scalar-diffed by the
// bundle lifecycle; not otherwise interpreted by the decision engine).
type UsageBudget struct {
	MaxInvocationsPerHour int64 `json:"max_invocations_per_hour,omitempty"`
}

// PostureRequirement demands a fresh, schema-valid, appropriately-verified
// attestation before allowing an operation (spec §4.1 step 5).
type PostureRequirement struct {
	RequiredSchemaID string   `json:"required_schema_id"`
	AllowedVerifiers []string `json:"allowed_verifiers"`
	MaxAgeSecs       int64    `json:"max_age_secs"`
	RequirementExpr  string   `json:"requirement_expr,omitempty"` // CEL, evaluated over attestation claims
}

// ZonePolicyObject is the authoritative policy for one zone: immutable
// after signing, identified by its object hash.
type ZonePolicyObject struct {
	ZoneID                    string                `json:"zone_id"`
	PrincipalPatterns         PatternList           `json:"principal_patterns"`
	ConnectorPatterns         PatternList           `json:"connector_patterns"`
	CapabilityPatterns        PatternList           `json:"capability_patterns"`
	CapabilityCeiling         []string              `json:"capability_ceiling,omitempty"`
	TransportPolicy           TransportPolicy       `json:"transport_policy"`
	DecisionReceipts          DecisionReceiptPolicy `json:"decision_receipts"`
	RequiresPosture           *PostureRequirement   `json:"requires_posture,omitempty"`
	UsageBudget               UsageBudget           `json:"usage_budget"`
	ExecutionApprovalRequired bool                  `json:"execution_approval_required"`
}

// CapabilityCeilingPermits reports whether cap is within the ceiling. An
// empty ceiling means no restriction (spec §4.1 step 6: "if non-empty").
func (z ZonePolicyObject) CapabilityCeilingPermits(cap string) bool {
	if len(z.CapabilityCeiling) == 0 {
		return true
	}
	for _, c := range z.CapabilityCeiling {
		if c == cap {
			return true
		}
	}
	return false
}

// ZoneDefinitionObject is the structural zone configuration and its
// declared labels.
type ZoneDefinitionObject struct {
	ZoneID string            `json:"zone_id"`
	Name   string            `json:"name"`
	Labels labels.ZoneLabels `json:"labels"`
}

// CapabilityConstraints narrows a capability grant; currently only a
// resource egress allow-list (spec §4.3.2 "Capability diff").
type CapabilityConstraints struct {
	ResourceAllow []string `json:"resource_allow,omitempty"`
}

// CapabilityObject is a named grant set plus a resource allow-list,
// referenced by capability tokens and roles.
type CapabilityObject struct {
	ObjectID    string                `json:"object_id"`
	Caps        []string              `json:"caps"`
	Constraints CapabilityConstraints `json:"constraints"`
}
