package core

import (
	"regexp"
	"strings"
)

var (
	camelBoundary1 = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	camelBoundary2 = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
)

// snakeToCamel converts "total_test_cases" to "totalTestCases". Used only at
// the inbound queue-payload JSON boundary (§6.1): keys may arrive in either
// case and both must be accepted.
func snakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	if len(parts) == 0 {
		return s
	}
	out := parts[0]
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		out += strings.ToUpper(p[:1]) + p[1:]
	}
	return out
}

// camelToSnake converts "totalTestCases" to "total_test_cases".
func camelToSnake(s string) string {
	s1 := camelBoundary2.ReplaceAllString(s, "${1}_${2}")
	s2 := camelBoundary1.ReplaceAllString(s1, "${1}_${2}")
	return strings.ToLower(s2)
}

// normalizeKeysToCamel rewrites every key of a decoded JSON object to
// camelCase, leaving already-camelCase keys untouched (snakeToCamel is
// idempotent on them). Nested objects/arrays are walked recursively so a
// full payload normalizes in one pass.
func normalizeKeysToCamel(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[snakeToCamel(k)] = normalizeKeysToCamel(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeKeysToCamel(val)
		}
		return out
	default:
		return v
	}
}
