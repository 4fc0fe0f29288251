package review

import (
	"fmt"
	"sort"
)

const (
	criticalPenalty = 30
	highPenalty     = 15
	findingPenalty  = 2
	maxBlockers     = 5
)

// Score maps a finding list to a merge-readiness assessment. Pure and
// deterministic: identical findings always yield identical output.
func Score(findings []Finding) MergeReadiness {
	var critical, high int
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			critical++
		case SeverityHigh:
			high++
		}
	}

	score := 100 - criticalPenalty*critical - highPenalty*high - findingPenalty*len(findings)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	blocking := make([]Finding, 0, critical+high)
	for _, f := range findings {
		if f.Severity == SeverityCritical || f.Severity == SeverityHigh {
			blocking = append(blocking, f)
		}
	}
	sort.SliceStable(blocking, func(i, j int) bool {
		if blocking[i].Severity.Rank() != blocking[j].Severity.Rank() {
			return blocking[i].Severity.Rank() < blocking[j].Severity.Rank()
		}
		return blocking[i].Confidence > blocking[j].Confidence
	})
	blockers := make([]string, 0, len(blocking))
	for _, f := range blocking {
		blockers = append(blockers, f.Title)
	}
	if len(blockers) > maxBlockers {
		blockers = blockers[:maxBlockers]
	}

	return MergeReadiness{
		Score:    score,
		Blockers: blockers,
		Notes:    scoreNotes(critical, len(findings)),
	}
}

func scoreNotes(critical, total int) string {
	switch {
	case critical > 0:
		return fmt.Sprintf("%d critical finding(s) must be addressed before merge.", critical)
	case total > 0:
		return fmt.Sprintf("Analysis found %d potential issue(s).", total)
	default:
		return "No major issues detected."
	}
}

// dimensionCategories maps each risk dimension to the finding categories
// that feed it.
var dimensionCategories = map[string][]Category{
	"security":        {CategorySecurity, CategorySecret, CategoryInjection, CategoryAuth},
	"performance":     {CategoryPerformance},
	"breaking_change": {CategoryBreakingChange, CategoryDeprecation},
	"maintainability": {CategoryMaintainability},
}

// BuildRiskMatrix derives each dimension from the maximum severity among
// findings tagged to its category set. No findings in a dimension means low.
func BuildRiskMatrix(findings []Finding) RiskMatrix {
	return RiskMatrix{
		Security:        maxSeverityFor(findings, dimensionCategories["security"]),
		Performance:     maxSeverityFor(findings, dimensionCategories["performance"]),
		BreakingChange:  maxSeverityFor(findings, dimensionCategories["breaking_change"]),
		Maintainability: maxSeverityFor(findings, dimensionCategories["maintainability"]),
	}
}

func maxSeverityFor(findings []Finding, categories []Category) Severity {
	best := SeverityLow
	for _, f := range findings {
		if !categoryIn(f.Category, categories) {
			continue
		}
		if f.Severity.Valid() && f.Severity.Rank() < best.Rank() {
			best = f.Severity
		}
	}
	return best
}

func categoryIn(c Category, set []Category) bool {
	for _, s := range set {
		if c == s {
			return true
		}
	}
	return false
}
