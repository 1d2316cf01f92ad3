package strings

import (
	"strings"
)

// DefaultMaxLen is the column width used for free text in tables.
const DefaultMaxLen = 48

// minLen leaves room for one character plus the ellipsis.
const minLen = 4

// Truncate collapses s onto one line and cuts it to at most maxLen runes,
// ending with "..." when shortened. maxLen below 4 is treated as 4.
func Truncate(s string, maxLen int) string {
	if maxLen < minLen {
		maxLen = minLen
	}
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
