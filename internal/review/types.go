package review

import (
	"errors"
	"fmt"
)

// Severity classifies a finding. The enum is closed: anything outside the
// four values fails validation.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Valid reports whether s is one of the four allowed values.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Rank orders severities, critical first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	}
	return 4
}

// Category tags a finding for risk-matrix aggregation.
type Category string

const (
	CategorySecurity        Category = "security"
	CategorySecret          Category = "secret"
	CategoryInjection       Category = "injection"
	CategoryAuth            Category = "auth"
	CategoryPerformance     Category = "performance"
	CategoryBreakingChange  Category = "breaking_change"
	CategoryDeprecation     Category = "deprecation"
	CategoryMaintainability Category = "maintainability"
)

func (c Category) valid() bool {
	switch c {
	case "", CategorySecurity, CategorySecret, CategoryInjection, CategoryAuth,
		CategoryPerformance, CategoryBreakingChange, CategoryDeprecation, CategoryMaintainability:
		return true
	}
	return false
}

// PRSummary describes what a change does and why.
type PRSummary struct {
	WhatChanged  string   `json:"what_changed"`
	WhyItChanged string   `json:"why_it_changed"`
	KeyFiles     []string `json:"key_files"`
}

// Finding is a single reported issue.
type Finding struct {
	Title          string   `json:"title"`
	Severity       Severity `json:"severity"`
	Confidence     float64  `json:"confidence"`
	Category       Category `json:"category,omitempty"`
	File           string   `json:"file"`
	LineNumber     *int     `json:"line_number,omitempty"`
	Evidence       string   `json:"evidence"`
	Recommendation string   `json:"recommendation"`
}

// RiskMatrix rates the change across four fixed dimensions.
type RiskMatrix struct {
	Security        Severity `json:"security"`
	Performance     Severity `json:"performance"`
	BreakingChange  Severity `json:"breaking_change"`
	Maintainability Severity `json:"maintainability"`
}

// TestPlan lists suggested tests for the change.
type TestPlan struct {
	UnitTests        []string `json:"unit_tests"`
	IntegrationTests []string `json:"integration_tests"`
	EdgeCases        []string `json:"edge_cases"`
}

// MergeReadiness summarizes whether the change is safe to merge.
type MergeReadiness struct {
	Score    int      `json:"score"`
	Blockers []string `json:"blockers"`
	Notes    string   `json:"notes"`
}

// Result is the complete structured review output.
type Result struct {
	PRSummary      PRSummary      `json:"pr_summary"`
	Findings       []Finding      `json:"findings"`
	RiskMatrix     RiskMatrix     `json:"risk_matrix"`
	TestPlan       TestPlan       `json:"test_plan"`
	MergeReadiness MergeReadiness `json:"merge_readiness"`
}

// Validate checks schema constraints: closed enums, numeric ranges, and
// required fields. It never mutates the result and never fills defaults.
func (r *Result) Validate() error {
	if r == nil {
		return errors.New("result is nil")
	}
	if r.PRSummary.WhatChanged == "" {
		return errors.New("pr_summary.what_changed is required")
	}
	for i, f := range r.Findings {
		if f.Title == "" {
			return fmt.Errorf("findings[%d].title is required", i)
		}
		if !f.Severity.Valid() {
			return fmt.Errorf("findings[%d].severity %q is not one of critical|high|medium|low", i, f.Severity)
		}
		if f.Confidence < 0 || f.Confidence > 1 {
			return fmt.Errorf("findings[%d].confidence %.3f must be within [0,1]", i, f.Confidence)
		}
		if !f.Category.valid() {
			return fmt.Errorf("findings[%d].category %q is unknown", i, f.Category)
		}
		if f.File == "" {
			return fmt.Errorf("findings[%d].file is required", i)
		}
	}
	dims := []struct {
		name  string
		value Severity
	}{
		{"security", r.RiskMatrix.Security},
		{"performance", r.RiskMatrix.Performance},
		{"breaking_change", r.RiskMatrix.BreakingChange},
		{"maintainability", r.RiskMatrix.Maintainability},
	}
	for _, d := range dims {
		if !d.value.Valid() {
			return fmt.Errorf("risk_matrix.%s %q is not one of critical|high|medium|low", d.name, d.value)
		}
	}
	if r.MergeReadiness.Score < 0 || r.MergeReadiness.Score > 100 {
		return fmt.Errorf("merge_readiness.score %d must be within [0,100]", r.MergeReadiness.Score)
	}
	return nil
}
