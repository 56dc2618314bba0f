package bundle

import (
	"fmt"
	"sort"

	"github.com/flywheel-sh/fcpcore/pkg/labels"
	"github.com/flywheel-sh/fcpcore/pkg/rolegraph"
	"github.com/flywheel-sh/fcpcore/pkg/zonepolicy"
)

// ResolvedBundle is a bundle with its referenced objects resolved in
// memory, the unit the diff/preview machinery operates over.
type ResolvedBundle struct {
	ZoneID       string
	Policy       zonepolicy.ZonePolicyObject
	ZoneDef      zonepolicy.ZoneDefinitionObject
	Roles        []rolegraph.Role
	Capabilities []zonepolicy.CapabilityObject
	Refs         []PolicyRef
}

// ZoneMismatchError is returned when diffing bundles for different zones.
type ZoneMismatchError struct {
	Before, After string
}

func (e ZoneMismatchError) Error() string {
	return fmt.Sprintf("bundle: zone mismatch: before=%q after=%q", e.Before, e.After)
}

// StringSetDiff is a sorted (added, removed) pair over string sets,
// computed with BTreeSet semantics (spec §4.3.2).
type StringSetDiff struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

func diffStringSets(before, after []string) StringSetDiff {
	beforeSet := toSet(before)
	afterSet := toSet(after)
	var added, removed []string
	for s := range afterSet {
		if _, ok := beforeSet[s]; !ok {
			added = append(added, s)
		}
	}
	for s := range beforeSet {
		if _, ok := afterSet[s]; !ok {
			removed = append(removed, s)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return StringSetDiff{Added: added, Removed: removed}
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, i := range items {
		s[i] = struct{}{}
	}
	return s
}

// PolicyRefDiff reports which policy refs were added, removed, or changed
// (by object_id, with a differing schema_id/object_hash), between two
// bundles.
type PolicyRefDiff struct {
	Added   []PolicyRef `json:"added,omitempty"`
	Removed []PolicyRef `json:"removed,omitempty"`
	Changed []PolicyRef `json:"changed,omitempty"` // after-state of the ref
}

func diffPolicyRefs(before, after []PolicyRef) PolicyRefDiff {
	beforeByID := make(map[string]PolicyRef, len(before))
	for _, r := range before {
		beforeByID[r.ObjectID] = r
	}
	afterByID := make(map[string]PolicyRef, len(after))
	for _, r := range after {
		afterByID[r.ObjectID] = r
	}

	var diff PolicyRefDiff
	for id, a := range afterByID {
		b, ok := beforeByID[id]
		if !ok {
			diff.Added = append(diff.Added, a)
			continue
		}
		if b.SchemaID != a.SchemaID || b.ObjectHash != a.ObjectHash {
			diff.Changed = append(diff.Changed, a)
		}
	}
	for id, b := range beforeByID {
		if _, ok := afterByID[id]; !ok {
			diff.Removed = append(diff.Removed, b)
		}
	}
	sortRefs(diff.Added)
	sortRefs(diff.Removed)
	sortRefs(diff.Changed)
	return diff
}

func sortRefs(refs []PolicyRef) {
	sort.Slice(refs, func(i, j int) bool { return refs[i].ObjectID < refs[j].ObjectID })
}

// ZonePolicyDiff reports pattern-list and scalar changes between two
// ZonePolicyObjects.
type ZonePolicyDiff struct {
	PrincipalAllow    StringSetDiff `json:"principal_allow"`
	PrincipalDeny     StringSetDiff `json:"principal_deny"`
	ConnectorAllow    StringSetDiff `json:"connector_allow"`
	ConnectorDeny     StringSetDiff `json:"connector_deny"`
	CapabilityAllow   StringSetDiff `json:"capability_allow"`
	CapabilityDeny    StringSetDiff `json:"capability_deny"`
	CapabilityCeiling StringSetDiff `json:"capability_ceiling"`

	TransportPolicyChanged  bool `json:"transport_policy_changed"`
	DecisionReceiptsChanged bool `json:"decision_receipts_changed"`
	RequiresPostureChanged  bool `json:"requires_posture_changed"`
	UsageBudgetChanged      bool `json:"usage_budget_changed"`

	Before zonepolicy.ZonePolicyObject `json:"-"`
	After  zonepolicy.ZonePolicyObject `json:"-"`
}

func diffZonePolicy(before, after zonepolicy.ZonePolicyObject) ZonePolicyDiff {
	return ZonePolicyDiff{
		PrincipalAllow:    diffStringSets(before.PrincipalPatterns.Allow, after.PrincipalPatterns.Allow),
		PrincipalDeny:     diffStringSets(before.PrincipalPatterns.Deny, after.PrincipalPatterns.Deny),
		ConnectorAllow:    diffStringSets(before.ConnectorPatterns.Allow, after.ConnectorPatterns.Allow),
		ConnectorDeny:     diffStringSets(before.ConnectorPatterns.Deny, after.ConnectorPatterns.Deny),
		CapabilityAllow:   diffStringSets(before.CapabilityPatterns.Allow, after.CapabilityPatterns.Allow),
		CapabilityDeny:    diffStringSets(before.CapabilityPatterns.Deny, after.CapabilityPatterns.Deny),
		CapabilityCeiling: diffStringSets(before.CapabilityCeiling, after.CapabilityCeiling),

		TransportPolicyChanged:  before.TransportPolicy != after.TransportPolicy,
		DecisionReceiptsChanged: before.DecisionReceipts != after.DecisionReceipts,
		RequiresPostureChanged:  postureChanged(before.RequiresPosture, after.RequiresPosture),
		UsageBudgetChanged:      before.UsageBudget != after.UsageBudget,

		Before: before,
		After:  after,
	}
}

func postureChanged(before, after *zonepolicy.PostureRequirement) bool {
	if before == nil || after == nil {
		return before != after
	}
	if before.RequiredSchemaID != after.RequiredSchemaID ||
		before.MaxAgeSecs != after.MaxAgeSecs ||
		before.RequirementExpr != after.RequirementExpr {
		return true
	}
	d := diffStringSets(before.AllowedVerifiers, after.AllowedVerifiers)
	return len(d.Added) > 0 || len(d.Removed) > 0
}

// ZoneDefinitionDiff is a field-wise diff of the structural zone config.
type ZoneDefinitionDiff struct {
	NameChanged            bool `json:"name_changed"`
	IntegrityChanged       bool `json:"integrity_changed"`
	ConfidentialityChanged bool `json:"confidentiality_changed"`

	Before labels.ZoneLabels `json:"-"`
	After  labels.ZoneLabels `json:"-"`
}

func diffZoneDefinition(before, after zonepolicy.ZoneDefinitionObject) ZoneDefinitionDiff {
	return ZoneDefinitionDiff{
		NameChanged:            before.Name != after.Name,
		IntegrityChanged:       before.Labels.Integrity != after.Labels.Integrity,
		ConfidentialityChanged: before.Labels.Confidentiality != after.Labels.Confidentiality,
		Before:                 before.Labels,
		After:                  after.Labels,
	}
}

// RoleDiff reports capability and includes-edge changes for one role name.
type RoleDiff struct {
	RoleName string        `json:"role_name"`
	Caps     StringSetDiff `json:"caps"`
	Includes StringSetDiff `json:"includes"`
}

func diffRoles(before, after []rolegraph.Role) []RoleDiff {
	beforeByName := make(map[string]rolegraph.Role, len(before))
	for _, r := range before {
		beforeByName[r.Name] = r
	}
	afterByName := make(map[string]rolegraph.Role, len(after))
	for _, r := range after {
		afterByName[r.Name] = r
	}

	names := make(map[string]struct{}, len(before)+len(after))
	for n := range beforeByName {
		names[n] = struct{}{}
	}
	for n := range afterByName {
		names[n] = struct{}{}
	}

	var out []RoleDiff
	for name := range names {
		b := beforeByName[name]
		a := afterByName[name]
		caps := diffStringSets(b.Caps, a.Caps)
		includes := diffStringSets(b.Includes, a.Includes)
		if len(caps.Added) == 0 && len(caps.Removed) == 0 && len(includes.Added) == 0 && len(includes.Removed) == 0 {
			continue
		}
		out = append(out, RoleDiff{RoleName: name, Caps: caps, Includes: includes})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleName < out[j].RoleName })
	return out
}

// CapabilityDiff reports caps and resource_allow changes for one capability
// object id.
type CapabilityDiff struct {
	ObjectID      string        `json:"object_id"`
	Caps          StringSetDiff `json:"caps"`
	ResourceAllow StringSetDiff `json:"resource_allow"`
}

func diffCapabilities(before, after []zonepolicy.CapabilityObject) []CapabilityDiff {
	beforeByID := make(map[string]zonepolicy.CapabilityObject, len(before))
	for _, c := range before {
		beforeByID[c.ObjectID] = c
	}
	afterByID := make(map[string]zonepolicy.CapabilityObject, len(after))
	for _, c := range after {
		afterByID[c.ObjectID] = c
	}

	ids := make(map[string]struct{}, len(before)+len(after))
	for id := range beforeByID {
		ids[id] = struct{}{}
	}
	for id := range afterByID {
		ids[id] = struct{}{}
	}

	var out []CapabilityDiff
	for id := range ids {
		b := beforeByID[id]
		a := afterByID[id]
		caps := diffStringSets(b.Caps, a.Caps)
		resourceAllow := diffStringSets(b.Constraints.ResourceAllow, a.Constraints.ResourceAllow)
		if len(caps.Added) == 0 && len(caps.Removed) == 0 && len(resourceAllow.Added) == 0 && len(resourceAllow.Removed) == 0 {
			continue
		}
		out = append(out, CapabilityDiff{ObjectID: id, Caps: caps, ResourceAllow: resourceAllow})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObjectID < out[j].ObjectID })
	return out
}

// BundleDiff is the aggregate deterministic diff between two resolved
// bundles for the same zone (spec §4.3.2).
type BundleDiff struct {
	ZoneID         string             `json:"zone_id"`
	PolicyRefs     PolicyRefDiff      `json:"policy_refs"`
	ZonePolicy     ZonePolicyDiff     `json:"zone_policy"`
	ZoneDefinition ZoneDefinitionDiff `json:"zone_definition"`
	Roles          []RoleDiff         `json:"roles,omitempty"`
	Capabilities   []CapabilityDiff   `json:"capabilities,omitempty"`
	MissingObjects []string           `json:"missing_objects,omitempty"`
}

// Diff computes the deterministic diff between before and after, which must
// share a zone_id (else ZoneMismatchError).
func Diff(before, after ResolvedBundle) (BundleDiff, error) {
	if before.ZoneID != after.ZoneID {
		return BundleDiff{}, ZoneMismatchError{Before: before.ZoneID, After: after.ZoneID}
	}

	var missing []string
	for _, r := range before.Refs {
		if r.ObjectID == "" {
			missing = append(missing, "before: empty object_id ref")
		}
	}
	for _, r := range after.Refs {
		if r.ObjectID == "" {
			missing = append(missing, "after: empty object_id ref")
		}
	}
	sort.Strings(missing)

	return BundleDiff{
		ZoneID:         before.ZoneID,
		PolicyRefs:     diffPolicyRefs(before.Refs, after.Refs),
		ZonePolicy:     diffZonePolicy(before.Policy, after.Policy),
		ZoneDefinition: diffZoneDefinition(before.ZoneDef, after.ZoneDef),
		Roles:          diffRoles(before.Roles, after.Roles),
		Capabilities:   diffCapabilities(before.Capabilities, after.Capabilities),
		MissingObjects: missing,
	}, nil
}
