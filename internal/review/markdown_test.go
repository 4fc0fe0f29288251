package review

import (
	"strings"
	"testing"
)

func TestRenderMarkdownSections(t *testing.T) {
	r := validResult()
	r.MergeReadiness.Blockers = []string{"Missing nil check"}

	out := RenderMarkdown(*r)

	for _, want := range []string{
		"# Automated PR Review",
		"## Summary",
		"**What changed:** Adds input validation",
		"## Findings",
		"`handler.go:10`",
		"## Risk Matrix",
		"| Maintainability | medium |",
		"**Unit Tests:**",
		"- [ ] Test handler with empty body",
		"## Merge Readiness",
		"**Score: 83/100**",
		"- Missing nil check",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q\n%s", want, out)
		}
	}
}

func TestRenderMarkdownSortsAndCapsFindings(t *testing.T) {
	r := validResult()
	r.Findings = nil
	for i := 0; i < 12; i++ {
		r.Findings = append(r.Findings, finding("low issue", SeverityLow, 0.5, CategoryMaintainability))
	}
	r.Findings = append(r.Findings, finding("the critical one", SeverityCritical, 0.9, CategorySecurity))

	out := RenderMarkdown(*r)
	if !strings.Contains(out, "the critical one") {
		t.Fatalf("critical finding should survive the render cap\n%s", out)
	}
	if got := strings.Count(out, "- **"); got != 10 {
		t.Fatalf("expected 10 rendered findings, got %d", got)
	}
	critIdx := strings.Index(out, "the critical one")
	lowIdx := strings.Index(out, "low issue")
	if critIdx > lowIdx {
		t.Fatalf("critical finding should render before low findings")
	}
}

func TestRenderMarkdownDeterministic(t *testing.T) {
	r := validResult()
	if RenderMarkdown(*r) != RenderMarkdown(*r) {
		t.Fatalf("render not deterministic")
	}
}
