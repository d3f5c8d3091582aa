package attribution

import "strings"

// MaxValueLength is the rune length NormalizeString truncates to.
const MaxValueLength = 250

// NormalizeString truncates s to MaxValueLength runes followed by "..." and
// replaces commas with colons.
func NormalizeString(s string) string {
	return normalizeString(s, MaxValueLength)
}

func normalizeString(s string, maxLength int) string {
	if runes := []rune(s); len(runes) > maxLength {
		s = string(runes[:maxLength]) + "..."
	}
	return strings.ReplaceAll(s, ",", ":")
}
