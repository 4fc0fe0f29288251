package changeset

import (
	"regexp"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

var newFileHeaderRE = regexp.MustCompile(`(?m)^\+\+\+ b/(.+)$`)

// ChangedFiles lists the paths touched by a unified diff. Parsing uses
// go-gitdiff; malformed diffs fall back to scanning "+++ b/" headers so
// pasted or partially mangled diffs still yield file attribution.
func ChangedFiles(diff string) []string {
	files, _, err := gitdiff.Parse(strings.NewReader(diff))
	if err == nil && len(files) > 0 {
		out := make([]string, 0, len(files))
		for _, f := range files {
			name := f.NewName
			if name == "" {
				name = f.OldName
			}
			if name != "" {
				out = append(out, name)
			}
		}
		return out
	}
	return headerFiles(diff)
}

func headerFiles(diff string) []string {
	matches := newFileHeaderRE.FindAllStringSubmatch(diff, -1)
	out := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		if name == "" || name == "/dev/null" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
