package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/flywheel-sh/fcpcore/pkg/bundle"
	"github.com/flywheel-sh/fcpcore/pkg/decision"
	"github.com/flywheel-sh/fcpcore/pkg/labels"
	"github.com/flywheel-sh/fcpcore/pkg/provenance"
	"github.com/flywheel-sh/fcpcore/pkg/zonepolicy"
)

// requestDTO is the CLI-facing shape of a PolicyDecisionInput: the nested
// approval-token / sanitizer-receipt / posture-attestation fields decision.Input
// carries are always left at their zero value, since requestDTO has no fields
// for them: decide runs exercise only the pattern, transport, and taint-tier
// gates.
type requestDTO struct {
	ZoneID                    string          `json:"zone_id"`
	PrincipalID               string          `json:"principal_id"`
	ConnectorID               string          `json:"connector_id"`
	OperationID               string          `json:"operation_id"`
	CapabilityID              string          `json:"capability_id"`
	SafetyTier                string          `json:"safety_tier"`
	TransportMode             string          `json:"transport_mode"`
	CurrentZone               string          `json:"current_zone"`
	TaintFlags                []string        `json:"taint_flags,omitempty"`
	CheckpointFresh           bool            `json:"checkpoint_fresh"`
	RevocationFresh           bool            `json:"revocation_fresh"`
	ExecutionApprovalRequired bool            `json:"execution_approval_required"`
	RequestInputJSON          json.RawMessage `json:"request_input_json,omitempty"`
	RequestInputHash          string          `json:"request_input_hash,omitempty"`
	NowMs                     int64           `json:"now_ms,omitempty"`
}

func parseSafetyTier(s string) labels.SafetyTier {
	switch s {
	case "risky":
		return labels.SafetyTierRisky
	case "dangerous":
		return labels.SafetyTierDangerous
	case "critical":
		return labels.SafetyTierCritical
	case "forbidden":
		return labels.SafetyTierForbidden
	default:
		return labels.SafetyTierSafe
	}
}

func (d requestDTO) toInput() decision.Input {
	flags := labels.NewTaintFlags()
	for _, f := range d.TaintFlags {
		flags = flags.Add(labels.TaintFlag(f))
	}
	return decision.Input{
		ZoneID:       d.ZoneID,
		PrincipalID:  d.PrincipalID,
		ConnectorID:  d.ConnectorID,
		OperationID:  d.OperationID,
		CapabilityID: d.CapabilityID,
		SafetyTier:   parseSafetyTier(d.SafetyTier),
		Provenance: provenance.Record{
			CurrentZone: provenance.ZoneId(d.CurrentZone),
			TaintFlags:  flags,
		},
		RequestInputJSON:          d.RequestInputJSON,
		RequestInputHash:          d.RequestInputHash,
		TransportMode:             zonepolicy.TransportMode(d.TransportMode),
		CheckpointFresh:           d.CheckpointFresh,
		RevocationFresh:           d.RevocationFresh,
		ExecutionApprovalRequired: d.ExecutionApprovalRequired,
		NowMs:                     d.NowMs,
		RequestObjectID:           decision.NewRequestID(),
	}
}

func runDecideCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("decide", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var policyPath, zoneDefPath, requestPath string
	cmd.StringVar(&policyPath, "policy", "", "Path to a zone-policy YAML fixture (REQUIRED)")
	cmd.StringVar(&zoneDefPath, "zonedef", "", "Path to a zone-definition YAML fixture (REQUIRED)")
	cmd.StringVar(&requestPath, "request", "", "Path to a PolicyDecisionInput JSON request file (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if policyPath == "" || zoneDefPath == "" || requestPath == "" {
		fmt.Fprintln(stderr, "Usage: fcpcore decide -policy <file> -zonedef <file> -request <file>")
		return 2
	}

	policy, err := bundle.LoadZonePolicyFixture(policyPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	zoneDef, err := bundle.LoadZoneDefinitionFixture(zoneDefPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	requestBody, err := os.ReadFile(requestPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	var req requestDTO
	if err := json.Unmarshal(requestBody, &req); err != nil {
		fmt.Fprintf(stderr, "decide: parse request file: %v\n", err)
		return 1
	}

	engine := decision.New(policy, zoneDef, nil)
	result := engine.Evaluate(req.toInput())

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if result.Outcome != decision.Allow {
		return 1
	}
	return 0
}
