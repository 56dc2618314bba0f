// Package glob implements the shared pattern matcher used by the zone
// policy allow/deny lists and execution-approval method patterns (spec
// §4.1 "Glob semantics").
//
// Pattern p matches string s iff:
//   - p == "*", or
//   - p contains no '*' and p == s, or
//   - p split on '*' yields parts p0..pn such that s starts with p0,
//     contains each pi (1<=i<n) left-to-right (greedy, non-overlapping),
//     and — when p does not end with '*' — s ends with pn.
//
// This is deliberately the simple left-to-right greedy semantics spec §9
// calls conservative-but-correct for single-'*' patterns and for patterns
// whose interior literals do not overlap the suffix; no more elaborate
// matcher is implemented, per spec's explicit instruction not to invent
// new behavior.
package glob

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize puts s into NFC form before pattern matching, so a principal or
// capability string built from decomposed Unicode (e.g. a combining-mark
// homoglyph) cannot slip past a pattern written against its composed form.
func Normalize(s string) string {
	return norm.NFC.String(s)
}

// Match reports whether pattern p matches string s. Both p and s are
// NFC-normalized first.
func Match(p, s string) bool {
	p = Normalize(p)
	s = Normalize(s)
	if p == "*" {
		return true
	}
	if !strings.Contains(p, "*") {
		return p == s
	}

	endsWithStar := strings.HasSuffix(p, "*")
	parts := strings.Split(p, "*")

	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	pos := len(parts[0])

	lastIdx := len(parts) - 1
	middleEnd := lastIdx
	if !endsWithStar {
		middleEnd = lastIdx - 1
	}

	for i := 1; i <= middleEnd; i++ {
		part := parts[i]
		if part == "" {
			continue
		}
		idx := strings.Index(s[pos:], part)
		if idx < 0 {
			return false
		}
		pos += idx + len(part)
	}

	if !endsWithStar {
		last := parts[lastIdx]
		if !strings.HasSuffix(s, last) {
			return false
		}
	}

	return true
}

// MatchAny reports whether s matches any pattern in patterns.
func MatchAny(patterns []string, s string) bool {
	for _, p := range patterns {
		if Match(p, s) {
			return true
		}
	}
	return false
}
