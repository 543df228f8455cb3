package common

import "strings"

// ToLowerWithTrim lowercases s after trimming surrounding whitespace.
func ToLowerWithTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
