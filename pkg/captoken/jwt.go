package captoken

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// capabilityClaims is the JWT bearer representation of a CapabilityToken,
// a supplemented wire format (spec.md does not mandate JWT; it is a
// convenience decode path for connectors that bear capability tokens as
// compact JWTs rather than raw canonical-CBOR).
type capabilityClaims struct {
	jwt.RegisteredClaims
	ZoneID string   `json:"zone_id"`
	Caps   []string `json:"caps"`
}

// DecodeCapabilityTokenJWT parses and verifies a compact JWT bearer token
// into a CapabilityToken, using keyFunc to resolve the verification key
// from the token's key id (as jwt.Parser conventionally does).
func DecodeCapabilityTokenJWT(raw string, keyFunc jwt.Keyfunc) (CapabilityToken, error) {
	var claims capabilityClaims
	parsed, err := jwt.ParseWithClaims(raw, &claims, keyFunc, jwt.WithValidMethods([]string{"EdDSA"}))
	if err != nil {
		return CapabilityToken{}, fmt.Errorf("captoken: jwt parse failed: %w", err)
	}
	if !parsed.Valid {
		return CapabilityToken{}, fmt.Errorf("captoken: jwt failed validation")
	}

	principal := ""
	if claims.Subject != "" {
		principal = claims.Subject
	}
	var issuedAt, expiresAt int64
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Unix()
	}
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Unix()
	}

	keyID, _ := parsed.Header["kid"].(string)

	return CapabilityToken{
		PrincipalID: principal,
		ZoneID:      claims.ZoneID,
		Caps:        claims.Caps,
		IssuedAt:    issuedAt,
		ExpiresAt:   expiresAt,
		KeyID:       keyID,
	}, nil
}
