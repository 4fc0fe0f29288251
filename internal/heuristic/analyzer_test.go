package heuristic

import (
	"reflect"
	"strings"
	"testing"

	"prreview-backend/internal/changeset"
	"prreview-backend/internal/review"
)

const secretDiff = `diff --git a/app/config.py b/app/config.py
index 1111111..2222222 100644
--- a/app/config.py
+++ b/app/config.py
@@ -10,3 +10,4 @@
 import os
+API_KEY = "sk-live-abcdef"
 DEBUG = False
 TIMEOUT = 30
`

func changeSet(diff string, files ...string) *changeset.ChangeSet {
	return &changeset.ChangeSet{Diff: diff, Files: files}
}

func TestAnalyzeFindsHardcodedSecret(t *testing.T) {
	result := New().Analyze(changeSet(secretDiff, "app/config.py"))

	if err := result.Validate(); err != nil {
		t.Fatalf("heuristic output must always validate: %v", err)
	}
	if len(result.Findings) == 0 {
		t.Fatalf("expected a finding for the hardcoded secret")
	}
	f := result.Findings[0]
	if f.Title != "Potential hardcoded secret" {
		t.Fatalf("unexpected title %q", f.Title)
	}
	if f.File != "app/config.py" {
		t.Fatalf("finding attributed to %q", f.File)
	}
	if f.LineNumber == nil || *f.LineNumber != 11 {
		t.Fatalf("expected line 11, got %v", f.LineNumber)
	}
	if f.Severity != review.SeverityHigh {
		t.Fatalf("expected high severity, got %s", f.Severity)
	}
}

func TestAnalyzeIgnoresRemovedAndContextLines(t *testing.T) {
	diff := `+++ b/app/old.py
@@ -1,3 +1,2 @@
 password = load_password()
-api_key = "sk-old-secret"
 run()
`
	result := New().Analyze(changeSet(diff, "app/old.py"))
	if len(result.Findings) != 0 {
		t.Fatalf("removed and context lines must not produce findings, got %+v", result.Findings)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	cs := changeSet(secretDiff, "app/config.py")
	first := New().Analyze(cs)
	second := New().Analyze(cs)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("heuristic analysis must be deterministic")
	}
}

func TestAnalyzeScoresFromFindings(t *testing.T) {
	result := New().Analyze(changeSet(secretDiff, "app/config.py"))
	// 1 high finding: 100 - 15 - 2 = 83.
	if result.MergeReadiness.Score != 83 {
		t.Fatalf("expected score 83, got %d", result.MergeReadiness.Score)
	}
	if result.RiskMatrix.Security != review.SeverityHigh {
		t.Fatalf("secret finding should raise security risk, got %s", result.RiskMatrix.Security)
	}
	if len(result.MergeReadiness.Blockers) != 1 {
		t.Fatalf("high finding should be a blocker, got %v", result.MergeReadiness.Blockers)
	}
}

func TestAnalyzeCapsFindings(t *testing.T) {
	var b strings.Builder
	b.WriteString("+++ b/app/loud.py\n@@ -1,0 +1,30 @@\n")
	for i := 0; i < 30; i++ {
		b.WriteString("+print(\"debug\")\n")
	}
	result := New().Analyze(changeSet(b.String(), "app/loud.py"))
	if len(result.Findings) != 20 {
		t.Fatalf("expected findings capped at 20, got %d", len(result.Findings))
	}
}

func TestAnalyzeTestPlanFromFileNames(t *testing.T) {
	cs := changeSet("+++ b/app/auth.py\n@@ -1,0 +1,1 @@\n+pass\n", "app/auth.py", "app/api.py")
	result := New().Analyze(cs)

	joined := strings.Join(result.TestPlan.UnitTests, " ")
	if !strings.Contains(joined, "app/auth.py") {
		t.Fatalf("auth file should yield auth test suggestions, got %v", result.TestPlan.UnitTests)
	}
	if len(result.TestPlan.EdgeCases) == 0 {
		t.Fatalf("expected edge case suggestions")
	}
	for _, list := range [][]string{result.TestPlan.UnitTests, result.TestPlan.IntegrationTests, result.TestPlan.EdgeCases} {
		if len(list) > 5 {
			t.Fatalf("test suggestions must be capped at 5, got %d", len(list))
		}
	}
}

func TestAnalyzeSummaryUsesChangeCounts(t *testing.T) {
	cs := &changeset.ChangeSet{
		Diff:  secretDiff,
		Files: []string{"a.go", "b.go", "c.go"},
		Meta: &changeset.PRMeta{
			Body:    "Refactors configuration loading",
			Changes: map[string]int{"a.go": 1, "b.go": 50, "c.go": 10},
		},
	}
	result := New().Analyze(cs)
	want := []string{"b.go", "c.go", "a.go"}
	if !reflect.DeepEqual(result.PRSummary.KeyFiles, want) {
		t.Fatalf("key files should rank by change count: got %v want %v", result.PRSummary.KeyFiles, want)
	}
	if result.PRSummary.WhyItChanged != "Refactors configuration loading" {
		t.Fatalf("summary should carry the PR body, got %q", result.PRSummary.WhyItChanged)
	}
}

func TestAnalyzePlaceholderSecretLowersConfidence(t *testing.T) {
	diff := `+++ b/docs/setup.md
@@ -1,1 +1,2 @@
 Setup steps:
+export API_KEY = "your_key_here"
`
	result := New().Analyze(changeSet(diff, "docs/setup.md"))
	if len(result.Findings) == 0 {
		t.Fatalf("expected a finding for the sample credential")
	}
	if got := result.Findings[0].Confidence; got != placeholderConfidence {
		t.Fatalf("placeholder values must lower confidence, got %.2f", got)
	}

	real := New().Analyze(changeSet(secretDiff, "app/config.py"))
	if got := real.Findings[0].Confidence; got != 0.7 {
		t.Fatalf("real-looking values keep rule confidence, got %.2f", got)
	}
}

func TestAnalyzeFlagsDeprecatedParameters(t *testing.T) {
	diff := `+++ b/app/client.py
@@ -1,2 +1,4 @@
 import warnings
+def fetch(url, verify=True, deprecated=True):
+    warnings.warn("fetch is going away", DeprecationWarning)
 run()
`
	result := New().Analyze(changeSet(diff, "app/client.py"))

	var found *review.Finding
	for i := range result.Findings {
		if result.Findings[i].Category == review.CategoryDeprecation {
			found = &result.Findings[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("expected a deprecation finding, got %+v", result.Findings)
	}
	if found.Severity != review.SeverityMedium {
		t.Fatalf("expected medium severity, got %s", found.Severity)
	}
	if result.RiskMatrix.BreakingChange != review.SeverityMedium {
		t.Fatalf("deprecation findings must feed the breaking_change dimension, got %s", result.RiskMatrix.BreakingChange)
	}
}
