package zonepolicy

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// PostureAttestation is a claim, produced off-core, that a principal's
// posture (device health, session context, ...) satisfies some bar.
type PostureAttestation struct {
	SchemaID string                 `json:"schema_id"`
	Verifier string                 `json:"verifier"`
	IssuedAt int64                  `json:"issued_at"`
	Claims   map[string]interface{} `json:"claims"`
}

// PostureCheckResult names which posture sub-check failed, mapped onto the
// posture.* reason codes (spec §6) by pkg/decision.
type PostureCheckResult string

const (
	PostureOK                 PostureCheckResult = "ok"
	PostureAttestationMissing PostureCheckResult = "attestation_missing"
	PostureAttestationExpired PostureCheckResult = "attestation_expired"
	PostureAttestationInvalid PostureCheckResult = "attestation_invalid"
	PostureRequirementNotMet  PostureCheckResult = "requirement_not_met"
	PostureVerifierNotAllowed PostureCheckResult = "verifier_not_allowed"
)

// SchemaRegistry resolves a schema id to a compiled jsonschema.Schema. This
// package provides no implementation; callers supply their own (e.g. loaded
// from the policy bundle). A nil registry skips schema validation.
type SchemaRegistry interface {
	Compiled(schemaID string) (*jsonschema.Schema, bool)
}

// Check evaluates an attestation (which may be nil, meaning absent) against
// the requirement, in the order spec §4.1 step 5 names: present, not
// expired, schema valid, verifier allowed, requirement satisfied.
func (req PostureRequirement) Check(att *PostureAttestation, schemas SchemaRegistry, nowSecs int64) PostureCheckResult {
	if att == nil {
		return PostureAttestationMissing
	}
	if req.MaxAgeSecs > 0 && nowSecs-att.IssuedAt > req.MaxAgeSecs {
		return PostureAttestationExpired
	}
	if schemas != nil {
		schema, ok := schemas.Compiled(req.RequiredSchemaID)
		if !ok {
			return PostureAttestationInvalid
		}
		if err := schema.Validate(claimsAsAny(att.Claims)); err != nil {
			return PostureAttestationInvalid
		}
	}
	if len(req.AllowedVerifiers) > 0 && !containsString(req.AllowedVerifiers, att.Verifier) {
		return PostureVerifierNotAllowed
	}
	if req.RequirementExpr != "" {
		satisfied, err := evaluatePostureExpr(req.RequirementExpr, att.Claims)
		if err != nil || !satisfied {
			return PostureRequirementNotMet
		}
	}
	return PostureOK
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func claimsAsAny(claims map[string]interface{}) interface{} {
	return claims
}

// evaluatePostureExpr compiles and evaluates a CEL boolean expression over
// the attestation's claims: cel.StdLib plus an explicit variable
// declaration, a cost-limited program, and InterruptCheckFrequency set for
// deterministic evaluation, exposed as a single "claims" dynamic variable.
func evaluatePostureExpr(expr string, claims map[string]interface{}) (bool, error) {
	env, err := cel.NewEnv(
		cel.StdLib(),
		cel.Variable("claims", cel.DynType),
	)
	if err != nil {
		return false, fmt.Errorf("zonepolicy: cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues.Err() != nil {
		return false, fmt.Errorf("zonepolicy: cel compile: %w", issues.Err())
	}

	prog, err := env.Program(ast, cel.CostLimit(10_000), cel.InterruptCheckFrequency(100))
	if err != nil {
		return false, fmt.Errorf("zonepolicy: cel program: %w", err)
	}

	val, _, err := prog.Eval(map[string]interface{}{"claims": claims})
	if err != nil {
		return false, fmt.Errorf("zonepolicy: cel eval: %w", err)
	}

	b, ok := val.Value().(bool)
	if !ok {
		return false, fmt.Errorf("zonepolicy: posture requirement_expr must evaluate to bool, got %T", val.Value())
	}
	return b, nil
}
