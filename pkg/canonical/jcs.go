// Package canonical provides the two bit-exact encodings the core depends
// on: RFC 8785 JSON Canonicalization (JCS), exposed as JSON/JSONString, and
// canonical-CBOR, for content-addressed hashing and signing bytes (spec §6).
package canonical

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// JSON marshals v to standard JSON and then reduces it to its RFC 8785
// canonical form via gowebpki/jcs: sorted object keys, no insignificant
// whitespace, RFC 8785 string escaping. Strings are not Unicode-normalized.
func JSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal failed: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: jcs transform failed: %w", err)
	}
	return out, nil
}

// JSONString is JSON rendered as a string.
func JSONString(v interface{}) (string, error) {
	b, err := JSON(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
