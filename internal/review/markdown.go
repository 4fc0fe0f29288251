package review

import (
	"fmt"
	"sort"
	"strings"
)

const maxRenderedFindings = 10

// RenderMarkdown formats a result as a GitHub-flavoured markdown comment.
// The output is deterministic for identical input.
func RenderMarkdown(r Result) string {
	var b strings.Builder

	b.WriteString("# Automated PR Review\n\n")
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "**What changed:** %s\n", r.PRSummary.WhatChanged)
	fmt.Fprintf(&b, "**Why:** %s\n", r.PRSummary.WhyItChanged)
	if len(r.PRSummary.KeyFiles) > 0 {
		fmt.Fprintf(&b, "**Key files:** %s\n", strings.Join(r.PRSummary.KeyFiles, ", "))
	}
	b.WriteString("\n")

	if len(r.Findings) > 0 {
		b.WriteString("## Findings\n\n")
		findings := make([]Finding, len(r.Findings))
		copy(findings, r.Findings)
		sort.SliceStable(findings, func(i, j int) bool {
			return findings[i].Severity.Rank() < findings[j].Severity.Rank()
		})
		if len(findings) > maxRenderedFindings {
			findings = findings[:maxRenderedFindings]
		}
		for _, f := range findings {
			fmt.Fprintf(&b, "- **%s** (%s)\n", f.Title, f.Severity)
			location := f.File
			if f.LineNumber != nil {
				location = fmt.Sprintf("%s:%d", f.File, *f.LineNumber)
			}
			fmt.Fprintf(&b, "  - File: `%s`\n", location)
			if f.Recommendation != "" {
				fmt.Fprintf(&b, "  - %s\n", f.Recommendation)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Risk Matrix\n\n")
	b.WriteString("| Category | Level |\n")
	b.WriteString("|----------|-------|\n")
	fmt.Fprintf(&b, "| Security | %s |\n", r.RiskMatrix.Security)
	fmt.Fprintf(&b, "| Performance | %s |\n", r.RiskMatrix.Performance)
	fmt.Fprintf(&b, "| Breaking Change | %s |\n", r.RiskMatrix.BreakingChange)
	fmt.Fprintf(&b, "| Maintainability | %s |\n\n", r.RiskMatrix.Maintainability)

	writeTestSection(&b, "Unit Tests", r.TestPlan.UnitTests)
	writeTestSection(&b, "Integration Tests", r.TestPlan.IntegrationTests)
	writeTestSection(&b, "Edge Cases", r.TestPlan.EdgeCases)

	b.WriteString("## Merge Readiness\n\n")
	fmt.Fprintf(&b, "**Score: %d/100**\n\n", r.MergeReadiness.Score)
	if len(r.MergeReadiness.Blockers) > 0 {
		b.WriteString("**Blockers:**\n")
		for _, blocker := range r.MergeReadiness.Blockers {
			fmt.Fprintf(&b, "- %s\n", blocker)
		}
		b.WriteString("\n")
	}
	if r.MergeReadiness.Notes != "" {
		fmt.Fprintf(&b, "*%s*\n", r.MergeReadiness.Notes)
	}

	return b.String()
}

func writeTestSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s:**\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- [ ] %s\n", item)
	}
	b.WriteString("\n")
}
