package decision

import (
	"encoding/json"
	"reflect"
	"strings"
)

// inputConstraintsMatch reports whether every JSON-pointer -> expected-value
// pair in constraints holds against requestInput. An unparseable
// requestInput or an unresolvable pointer counts as a mismatch: execution
// approvals are scoped narrowly, so an ambiguous match is treated as no
// match rather than a permissive one.
func inputConstraintsMatch(constraints map[string]interface{}, requestInput []byte) bool {
	if len(constraints) == 0 {
		return true
	}
	var doc interface{}
	if len(requestInput) == 0 {
		return false
	}
	if err := json.Unmarshal(requestInput, &doc); err != nil {
		return false
	}
	for pointer, want := range constraints {
		got, ok := resolveJSONPointer(doc, pointer)
		if !ok {
			return false
		}
		if !reflect.DeepEqual(normalizeJSON(got), normalizeJSON(want)) {
			return false
		}
	}
	return true
}

func resolveJSONPointer(doc interface{}, pointer string) (interface{}, bool) {
	if pointer == "" || pointer == "/" {
		return doc, true
	}
	p := strings.TrimPrefix(pointer, "/")
	cur := doc
	for _, tok := range strings.Split(p, "/") {
		tok = strings.ReplaceAll(tok, "~1", "/")
		tok = strings.ReplaceAll(tok, "~0", "~")
		switch v := cur.(type) {
		case map[string]interface{}:
			next, ok := v[tok]
			if !ok {
				return nil, false
			}
			cur = next
		case []interface{}:
			idx := -1
			for i, c := range tok {
				if c < '0' || c > '9' {
					idx = -1
					break
				}
				if idx == -1 {
					idx = 0
				}
				idx = idx*10 + int(c-'0')
			}
			if idx < 0 || idx >= len(v) {
				return nil, false
			}
			cur = v[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// normalizeJSON round-trips through JSON marshal/unmarshal so that e.g. a
// Go int and a json.Number-decoded float compare equal as a plain float64.
func normalizeJSON(v interface{}) interface{} {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
