// Package utils holds small string helpers shared by the CLI and the keyring.
package utils

import "strings"

// ContainsAny reports whether s contains any of substrings, ignoring case.
func ContainsAny(s string, substrings ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrings {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// maskPrefixMin is the shortest value Mask keeps a prefix of.
const maskPrefixMin = 16

// Mask hides a secret for display. Values of at least maskPrefixMin
// characters keep their first four; anything shorter is fully hidden.
// Empty stays empty.
//
//	"0123456789abcdef" -> "0123****"
func Mask(s string) string {
	r := []rune(s)
	switch {
	case len(r) == 0:
		return ""
	case len(r) < maskPrefixMin:
		return "****"
	default:
		return string(r[:4]) + "****"
	}
}

// Redact hides a secret completely. Empty stays empty.
func Redact(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

// OrDefault returns s, or fallback when s is empty.
func OrDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
