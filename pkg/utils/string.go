package utils

import "github.com/charmbracelet/x/ansi"

// Truncate shortens s to at most maxLen terminal cells, ending in "..." when
// anything was cut. Escape sequences are preserved and not counted.
func Truncate(s string, maxLen int) string {
	if ansi.StringWidth(s) <= maxLen {
		return s
	}
	return ansi.Truncate(s, maxLen, "...")
}

// SingleLine collapses line breaks so s fits on one row of a listing.
func SingleLine(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			r = ' '
		}
		out = append(out, r)
	}
	return string(out)
}
