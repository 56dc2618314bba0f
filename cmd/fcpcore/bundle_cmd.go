package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/flywheel-sh/fcpcore/pkg/bundle"
	"github.com/flywheel-sh/fcpcore/pkg/canonical"
	"github.com/flywheel-sh/fcpcore/pkg/objectid"
)

const (
	zonePolicySchemaID = "fcp://schemas/zonepolicy/v1"
	zoneDefSchemaID    = "fcp://schemas/zonedefinition/v1"
)

func runBundleCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("bundle", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var policyPath, zoneDefPath, rolesPath, zoneID, bundleID string
	var policySeq int64
	cmd.StringVar(&policyPath, "policy", "", "Path to a zone-policy YAML fixture (REQUIRED)")
	cmd.StringVar(&zoneDefPath, "zonedef", "", "Path to a zone-definition YAML fixture (REQUIRED)")
	cmd.StringVar(&rolesPath, "roles", "", "Path to a roles YAML fixture (optional)")
	cmd.StringVar(&zoneID, "zone-id", "", "Zone id for the bundle (REQUIRED)")
	cmd.StringVar(&bundleID, "bundle-id", "", "Bundle id (REQUIRED)")
	cmd.Int64Var(&policySeq, "policy-seq", 1, "Monotone policy sequence number for this bundle")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if policyPath == "" || zoneDefPath == "" || zoneID == "" || bundleID == "" {
		fmt.Fprintln(stderr, "Usage: fcpcore bundle -policy <file> -zonedef <file> -zone-id <id> -bundle-id <id> [-roles <file>]")
		return 2
	}

	resolved, err := loadResolvedBundle(zoneID, policyPath, zoneDefPath, rolesPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	b := bundle.PolicyBundle{
		Format:        "fcp-policy-bundle",
		SchemaVersion: "1.0",
		BundleID:      bundleID,
		ZoneID:        zoneID,
		PolicySeq:     policySeq,
		HashAlgo:      "blake3-256",
		Policies:      resolved.Refs,
	}
	hash, err := bundle.ComputeBundleHash(b)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	b.BundleHash = hash

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return encodeOrFail(enc, b, stderr)
}

// loadResolvedBundle loads a policy/zone-definition/(optional roles)
// fixture set into a ResolvedBundle, computing the policy ref's object_hash
// from its own canonical encoding (this CLI has no separate policy-object
// store, so each fixture stands in as its own persisted object).
func loadResolvedBundle(zoneID, policyPath, zoneDefPath, rolesPath string) (bundle.ResolvedBundle, error) {
	policy, err := bundle.LoadZonePolicyFixture(policyPath)
	if err != nil {
		return bundle.ResolvedBundle{}, err
	}
	zoneDef, err := bundle.LoadZoneDefinitionFixture(zoneDefPath)
	if err != nil {
		return bundle.ResolvedBundle{}, err
	}

	policyBytes, err := canonical.CBOR(policy)
	if err != nil {
		return bundle.ResolvedBundle{}, fmt.Errorf("bundle: canonicalize zone policy: %w", err)
	}
	policyID := objectid.FromUnscopedBytes(policyBytes)

	refs := []bundle.PolicyRef{{
		ObjectID:   policyID.String(),
		SchemaID:   zonePolicySchemaID,
		ObjectHash: objectid.Blake3Hex(policyBytes),
	}}

	resolved := bundle.ResolvedBundle{
		ZoneID:  zoneID,
		Policy:  policy,
		ZoneDef: zoneDef,
		Refs:    refs,
	}
	if rolesPath != "" {
		roles, err := bundle.LoadRolesFixture(rolesPath)
		if err != nil {
			return bundle.ResolvedBundle{}, err
		}
		resolved.Roles = roles
	}
	return resolved, nil
}

func encodeOrFail(enc *json.Encoder, v any, stderr io.Writer) int {
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}
