package util

import "strings"

// NormalizeAddress trims and lower-cases a contract address.
func NormalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
