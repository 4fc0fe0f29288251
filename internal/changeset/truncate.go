package changeset

import (
	"strings"
	"unicode/utf8"
)

const (
	// DiffCharLimit caps how much diff text flows into analysis.
	DiffCharLimit = 15000

	// TruncationMarker is appended whenever the diff was cut.
	TruncationMarker = "\n\n[diff truncated: size limit reached]"
)

// Truncate enforces the diff size cap. Diffs at or under the limit pass
// through unchanged. Oversized diffs are reordered so file headers, hunk
// headers and changed lines come first, then cut at exactly DiffCharLimit
// characters with the marker appended. The second return reports whether
// truncation happened.
func Truncate(diff string) (string, bool) {
	if utf8.RuneCountInString(diff) <= DiffCharLimit {
		return diff, false
	}
	return cutRunes(prioritize(diff), DiffCharLimit) + TruncationMarker, true
}

// cutRunes returns the first n characters of s, never splitting a rune.
func cutRunes(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}

// prioritize splits the diff into changed content (headers, hunk markers,
// added and removed lines) and surrounding context, then rejoins with the
// changed content first. Relative order within each group is preserved so
// truncation drops context before it drops edits.
func prioritize(diff string) string {
	lines := strings.Split(diff, "\n")
	changed := make([]string, 0, len(lines))
	context := make([]string, 0, len(lines))
	for _, line := range lines {
		if isChangedLine(line) {
			changed = append(changed, line)
		} else {
			context = append(context, line)
		}
	}
	return strings.Join(append(changed, context...), "\n")
}

func isChangedLine(line string) bool {
	switch {
	case strings.HasPrefix(line, "diff --git"),
		strings.HasPrefix(line, "index "),
		strings.HasPrefix(line, "--- "),
		strings.HasPrefix(line, "+++ "),
		strings.HasPrefix(line, "@@"),
		strings.HasPrefix(line, "Binary files"):
		return true
	case strings.HasPrefix(line, "+"), strings.HasPrefix(line, "-"):
		return true
	}
	return false
}
