package bundle

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flywheel-sh/fcpcore/pkg/labels"
	"github.com/flywheel-sh/fcpcore/pkg/rolegraph"
	"github.com/flywheel-sh/fcpcore/pkg/zonepolicy"
)

// zonePolicyFixture is the YAML-shaped DTO for a ZonePolicyObject fixture:
// a dedicated yaml-tagged struct distinct from the runtime json-tagged
// type.
type zonePolicyFixture struct {
	ZoneID             string               `yaml:"zone_id"`
	PrincipalPatterns  patternListFixture   `yaml:"principal_patterns"`
	ConnectorPatterns  patternListFixture   `yaml:"connector_patterns"`
	CapabilityPatterns patternListFixture   `yaml:"capability_patterns"`
	CapabilityCeiling  []string             `yaml:"capability_ceiling,omitempty"`
	TransportPolicy    transportFixture     `yaml:"transport_policy"`
	DecisionReceipts   receiptPolicyFixture `yaml:"decision_receipts"`
	RequiresPosture    *postureFixture      `yaml:"requires_posture,omitempty"`
	UsageBudget        struct {
		MaxInvocationsPerHour int64 `yaml:"max_invocations_per_hour,omitempty"`
	} `yaml:"usage_budget"`
	ExecutionApprovalRequired bool `yaml:"execution_approval_required"`
}

type patternListFixture struct {
	Allow []string `yaml:"allow,omitempty"`
	Deny  []string `yaml:"deny,omitempty"`
}

type transportFixture struct {
	AllowLAN    bool `yaml:"allow_lan"`
	AllowDERP   bool `yaml:"allow_derp"`
	AllowFunnel bool `yaml:"allow_funnel"`
}

type receiptPolicyFixture struct {
	EmitOnAllow bool `yaml:"emit_on_allow"`
	EmitOnDeny  bool `yaml:"emit_on_deny"`
}

type postureFixture struct {
	RequiredSchemaID string   `yaml:"required_schema_id"`
	AllowedVerifiers []string `yaml:"allowed_verifiers"`
	MaxAgeSecs       int64    `yaml:"max_age_secs"`
	RequirementExpr  string   `yaml:"requirement_expr,omitempty"`
}

// zoneDefFixture is the YAML-shaped DTO for a ZoneDefinitionObject fixture.
type zoneDefFixture struct {
	ZoneID string `yaml:"zone_id"`
	Name   string `yaml:"name"`
	Labels struct {
		Integrity       string `yaml:"integrity"`
		Confidentiality string `yaml:"confidentiality"`
	} `yaml:"labels"`
}

func parseIntegrity(s string) labels.IntegrityLevel {
	switch s {
	case "work":
		return labels.IntegrityWork
	case "team":
		return labels.IntegrityTeam
	case "owner":
		return labels.IntegrityOwner
	default:
		return labels.IntegrityUntrusted
	}
}

func parseConfidentiality(s string) labels.ConfidentialityLevel {
	switch s {
	case "internal":
		return labels.ConfidentialityInternal
	case "shared":
		return labels.ConfidentialityShared
	case "public":
		return labels.ConfidentialityPublic
	default:
		return labels.ConfidentialitySecret
	}
}

// LoadZonePolicyFixture reads and converts a zone-policy YAML fixture file.
func LoadZonePolicyFixture(path string) (zonepolicy.ZonePolicyObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return zonepolicy.ZonePolicyObject{}, fmt.Errorf("bundle: read zone policy fixture %s: %w", path, err)
	}
	var f zonePolicyFixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return zonepolicy.ZonePolicyObject{}, fmt.Errorf("bundle: parse zone policy fixture %s: %w", path, err)
	}

	out := zonepolicy.ZonePolicyObject{
		ZoneID:                    f.ZoneID,
		PrincipalPatterns:         zonepolicy.PatternList{Allow: f.PrincipalPatterns.Allow, Deny: f.PrincipalPatterns.Deny},
		ConnectorPatterns:         zonepolicy.PatternList{Allow: f.ConnectorPatterns.Allow, Deny: f.ConnectorPatterns.Deny},
		CapabilityPatterns:        zonepolicy.PatternList{Allow: f.CapabilityPatterns.Allow, Deny: f.CapabilityPatterns.Deny},
		CapabilityCeiling:         f.CapabilityCeiling,
		TransportPolicy:           zonepolicy.TransportPolicy(f.TransportPolicy),
		DecisionReceipts:          zonepolicy.DecisionReceiptPolicy(f.DecisionReceipts),
		UsageBudget:               zonepolicy.UsageBudget{MaxInvocationsPerHour: f.UsageBudget.MaxInvocationsPerHour},
		ExecutionApprovalRequired: f.ExecutionApprovalRequired,
	}
	if f.RequiresPosture != nil {
		out.RequiresPosture = &zonepolicy.PostureRequirement{
			RequiredSchemaID: f.RequiresPosture.RequiredSchemaID,
			AllowedVerifiers: f.RequiresPosture.AllowedVerifiers,
			MaxAgeSecs:       f.RequiresPosture.MaxAgeSecs,
			RequirementExpr:  f.RequiresPosture.RequirementExpr,
		}
	}
	return out, nil
}

// LoadZoneDefinitionFixture reads and converts a zone-definition YAML
// fixture file.
func LoadZoneDefinitionFixture(path string) (zonepolicy.ZoneDefinitionObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return zonepolicy.ZoneDefinitionObject{}, fmt.Errorf("bundle: read zone definition fixture %s: %w", path, err)
	}
	var f zoneDefFixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return zonepolicy.ZoneDefinitionObject{}, fmt.Errorf("bundle: parse zone definition fixture %s: %w", path, err)
	}
	return zonepolicy.ZoneDefinitionObject{
		ZoneID: f.ZoneID,
		Name:   f.Name,
		Labels: labels.ZoneLabels{
			Integrity:       parseIntegrity(f.Labels.Integrity),
			Confidentiality: parseConfidentiality(f.Labels.Confidentiality),
		},
	}, nil
}

// roleFixture is the YAML-shaped DTO for a RoleObject fixture.
type roleFixture struct {
	Name     string   `yaml:"name"`
	Caps     []string `yaml:"caps,omitempty"`
	Includes []string `yaml:"includes,omitempty"`
}

// LoadRolesFixture reads a list of role fixtures from a single YAML file.
func LoadRolesFixture(path string) ([]rolegraph.Role, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bundle: read roles fixture %s: %w", path, err)
	}
	var fixtures []roleFixture
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("bundle: parse roles fixture %s: %w", path, err)
	}
	roles := make([]rolegraph.Role, 0, len(fixtures))
	for _, f := range fixtures {
		roles = append(roles, rolegraph.Role{Name: f.Name, Caps: f.Caps, Includes: f.Includes})
	}
	return roles, nil
}
