// Package sanitize is the second line of defense ahead of the persistence
// layer: every payload is cleaned again before storage or audit embedding,
// independently of schema validation, so a schema change cannot silently
// remove sanitization.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxStringLength = 10000
	maxKeyLength    = 64
)

var keyRe = regexp.MustCompile(`[^A-Za-z0-9_]`)

// String strips quote, backslash, and semicolon characters, trims
// whitespace, and caps the length. Applying it twice yields the same value.
func String(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\'', '"', '\\', ';':
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if len(s) > maxStringLength {
		s = strings.TrimSpace(Truncate(s, maxStringLength))
	}
	return s
}

// Truncate caps s at max bytes without splitting a multi-byte rune. A split
// rune would leave the string invalid UTF-8 and make Postgres reject the row.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Value recursively cleans strings, slices element-wise, and maps via Map.
// Non-string scalars pass through unchanged.
func Value(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return String(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = Value(elem)
		}
		return out
	case map[string]interface{}:
		return Map(val)
	default:
		return v
	}
}

// Map sanitizes every value recursively and restricts keys to
// [A-Za-z0-9_] with a bounded length. Keys that clean to empty are dropped.
func Map(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		key := keyRe.ReplaceAllString(k, "")
		if key == "" {
			continue
		}
		if len(key) > maxKeyLength {
			key = key[:maxKeyLength]
		}
		out[key] = Value(v)
	}
	return out
}
