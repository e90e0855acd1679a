package textutil

import "strings"

// Flatten collapses all whitespace runs, including newlines and tabs, into
// single spaces and trims the result.
func Flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate caps s at limit runes. Negative limits return the empty string.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// TruncateWithEllipsis caps s at limit runes and appends "..." when anything
// was cut.
func TruncateWithEllipsis(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// Snippet produces a compact single-line form of a payload for error messages
// and log lines. Empty input renders as "<empty>".
func Snippet(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "<empty>"
	}
	const limit = 160
	return TruncateWithEllipsis(Flatten(trimmed), limit)
}
