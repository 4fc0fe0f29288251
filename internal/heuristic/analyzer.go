package heuristic

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"prreview-backend/internal/changeset"
	"prreview-backend/internal/review"
)

// ModelVersion identifies results produced by the rule-based analyzer.
const ModelVersion = "heuristic/v1"

const (
	maxFindings    = 20
	maxKeyFiles    = 5
	maxSuggestions = 5
	maxEvidenceLen = 200
)

var hunkHeaderRE = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// Analyzer produces a structured review from diff patterns alone. It is
// deterministic: the same change set always yields the same result.
type Analyzer struct{}

// New constructs a heuristic Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Analyze scans the added lines of the diff against the rule table and
// assembles a complete review result.
func (a *Analyzer) Analyze(cs *changeset.ChangeSet) *review.Result {
	findings := scanDiff(cs.Diff)
	if len(findings) > maxFindings {
		findings = findings[:maxFindings]
	}

	result := &review.Result{
		PRSummary:      buildSummary(cs),
		Findings:       findings,
		RiskMatrix:     review.BuildRiskMatrix(findings),
		TestPlan:       buildTestPlan(cs.Files, findings),
		MergeReadiness: review.Score(findings),
	}
	return result
}

// scanDiff walks the diff line by line, tracking the current file via
// "+++ b/" headers and new-side line numbers via hunk headers, and matches
// each added line against the rule table.
func scanDiff(diff string) []review.Finding {
	var findings []review.Finding
	file := "unknown"
	lineNum := 0

	for _, raw := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(raw, "+++ b/"):
			file = strings.TrimPrefix(raw, "+++ b/")
			continue
		case strings.HasPrefix(raw, "+++ "):
			continue
		case strings.HasPrefix(raw, "@@"):
			if m := hunkHeaderRE.FindStringSubmatch(raw); m != nil {
				start, _ := strconv.Atoi(m[1])
				lineNum = start - 1
			}
			continue
		case strings.HasPrefix(raw, "-"), strings.HasPrefix(raw, "diff --git"), strings.HasPrefix(raw, "index "):
			continue
		}

		added := strings.HasPrefix(raw, "+")
		if !added {
			lineNum++
			continue
		}
		lineNum++
		content := strings.TrimPrefix(raw, "+")

		for _, rule := range rules {
			match := rule.Pattern.FindString(content)
			if match == "" {
				continue
			}
			n := lineNum
			confidence := rule.Confidence
			if rule.Category == review.CategorySecret && looksLikePlaceholder(match) {
				confidence = placeholderConfidence
			}
			findings = append(findings, review.Finding{
				Title:          rule.Title,
				Severity:       rule.Severity,
				Confidence:     confidence,
				Category:       rule.Category,
				File:           file,
				LineNumber:     &n,
				Evidence:       clip(strings.TrimSpace(content)),
				Recommendation: rule.Recommendation,
			})
		}
	}
	return findings
}

const placeholderConfidence = 0.4

var placeholderMarkers = []string{
	"example", "changeme", "placeholder", "dummy", "your_", "your-", "xxx", "<", "${", "%s", "{{",
}

// looksLikePlaceholder reports whether a matched secret value is a
// template or sample value rather than a real credential.
func looksLikePlaceholder(match string) bool {
	lower := strings.ToLower(match)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func buildSummary(cs *changeset.ChangeSet) review.PRSummary {
	names := cs.Files
	listed := names
	suffix := ""
	if len(listed) > maxKeyFiles {
		listed = listed[:maxKeyFiles]
		suffix = "..."
	}
	what := fmt.Sprintf("Changes to %d file(s): %s%s", len(names), strings.Join(listed, ", "), suffix)
	if len(names) == 0 {
		what = "Changes with no recognizable file headers"
	}

	why := "No description provided"
	if cs.Meta != nil && cs.Meta.Body != "" {
		why = cs.Meta.Body
		if len(why) > 200 {
			why = why[:200]
		}
	}

	return review.PRSummary{
		WhatChanged:  what,
		WhyItChanged: why,
		KeyFiles:     keyFiles(cs),
	}
}

// keyFiles ranks files by total change count when PR metadata is present,
// falling back to diff order for raw diffs. Ties break alphabetically so
// the output is stable.
func keyFiles(cs *changeset.ChangeSet) []string {
	names := append([]string(nil), cs.Files...)
	if cs.Meta != nil && len(cs.Meta.Changes) > 0 {
		changes := cs.Meta.Changes
		sort.SliceStable(names, func(i, j int) bool {
			if changes[names[i]] != changes[names[j]] {
				return changes[names[i]] > changes[names[j]]
			}
			return names[i] < names[j]
		})
	}
	if len(names) > maxKeyFiles {
		names = names[:maxKeyFiles]
	}
	return names
}

func buildTestPlan(files []string, findings []review.Finding) review.TestPlan {
	var unit, integration, edge []string

	for _, name := range files {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "auth") || strings.Contains(lower, "login") {
			unit = append(unit, fmt.Sprintf("Test authentication logic in %s", name))
			integration = append(integration, "Test complete login/logout flow")
			edge = append(edge, "Test with invalid/expired tokens")
		}
		if strings.Contains(lower, "api") || strings.Contains(lower, "route") || strings.Contains(lower, "handler") {
			unit = append(unit, fmt.Sprintf("Test endpoint handlers in %s", name))
			integration = append(integration, "Test API endpoints with various inputs")
			edge = append(edge, "Test rate limiting and error responses")
		}
		if strings.Contains(lower, "model") || strings.Contains(lower, "schema") {
			unit = append(unit, fmt.Sprintf("Test data validation in %s", name))
			edge = append(edge, "Test with null/empty values")
		}
	}

	authChange := false
	for _, f := range findings {
		if f.Category == review.CategoryAuth {
			authChange = true
		}
		if f.Severity == review.SeverityCritical || f.Severity == review.SeverityHigh {
			integration = append(integration, fmt.Sprintf("Verify fix for: %s", f.Title))
		}
	}
	if authChange {
		integration = append(integration, "Test authentication flows end-to-end")
		edge = append(edge, "Test session handling and token refresh")
	}

	return review.TestPlan{
		UnitTests:        dedupe(unit, maxSuggestions),
		IntegrationTests: dedupe(integration, maxSuggestions),
		EdgeCases:        dedupe(edge, maxSuggestions),
	}
}

// dedupe removes duplicates preserving first-seen order and caps the list.
func dedupe(items []string, limit int) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out
}

func clip(s string) string {
	if len(s) > maxEvidenceLen {
		return s[:maxEvidenceLen]
	}
	return s
}
