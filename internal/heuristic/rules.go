package heuristic

import (
	"regexp"

	"prreview-backend/internal/review"
)

// Rule is one pattern the analyzer scans added lines for. Rules are
// evaluated in table order so output ordering is stable.
type Rule struct {
	Title          string
	Pattern        *regexp.Regexp
	Severity       review.Severity
	Confidence     float64
	Category       review.Category
	Recommendation string
}

var rules = []Rule{
	{
		Title:          "Potential hardcoded secret",
		Pattern:        regexp.MustCompile(`(?i)(password|secret|api_key|apikey|token|credential)\s*[:=]\s*["'][^"']+["']`),
		Severity:       review.SeverityHigh,
		Confidence:     0.7,
		Category:       review.CategorySecret,
		Recommendation: "Move the value to environment configuration or a secret manager.",
	},
	{
		Title:          "Dangerous eval() usage",
		Pattern:        regexp.MustCompile(`(?i)\beval\s*\(`),
		Severity:       review.SeverityHigh,
		Confidence:     0.7,
		Category:       review.CategorySecurity,
		Recommendation: "Avoid eval; parse the input explicitly instead.",
	},
	{
		Title:          "Dangerous exec() usage",
		Pattern:        regexp.MustCompile(`(?i)\bexec\s*\(`),
		Severity:       review.SeverityHigh,
		Confidence:     0.7,
		Category:       review.CategorySecurity,
		Recommendation: "Avoid exec on untrusted input; use a safe dispatch table.",
	},
	{
		Title:          "Potential SQL injection",
		Pattern:        regexp.MustCompile(`(?i)SELECT.*FROM.*WHERE.*=.*\+`),
		Severity:       review.SeverityHigh,
		Confidence:     0.7,
		Category:       review.CategoryInjection,
		Recommendation: "Use parameterized queries instead of string concatenation.",
	},
	{
		Title:          "Potential XSS via innerHTML",
		Pattern:        regexp.MustCompile(`(?i)innerHTML\s*=`),
		Severity:       review.SeverityHigh,
		Confidence:     0.7,
		Category:       review.CategorySecurity,
		Recommendation: "Use textContent or sanitize the markup before assignment.",
	},
	{
		Title:          "React XSS risk",
		Pattern:        regexp.MustCompile(`dangerouslySetInnerHTML`),
		Severity:       review.SeverityHigh,
		Confidence:     0.7,
		Category:       review.CategorySecurity,
		Recommendation: "Sanitize the HTML payload before rendering it.",
	},
	{
		Title:          "Shell injection risk",
		Pattern:        regexp.MustCompile(`(?i)subprocess\.\w+\(.*shell\s*=\s*True`),
		Severity:       review.SeverityHigh,
		Confidence:     0.7,
		Category:       review.CategoryInjection,
		Recommendation: "Pass argument lists without shell=True.",
	},
	{
		Title:          "Insecure deserialization",
		Pattern:        regexp.MustCompile(`pickle\.load`),
		Severity:       review.SeverityHigh,
		Confidence:     0.7,
		Category:       review.CategorySecurity,
		Recommendation: "Do not unpickle untrusted data; use a safe format like JSON.",
	},
	{
		Title:          "Insecure YAML loading",
		Pattern:        regexp.MustCompile(`yaml\.load\(`),
		Severity:       review.SeverityHigh,
		Confidence:     0.6,
		Category:       review.CategorySecurity,
		Recommendation: "Use yaml.safe_load or pass an explicit safe Loader.",
	},
	{
		Title:          "SELECT * may fetch unnecessary data",
		Pattern:        regexp.MustCompile(`(?i)SELECT\s+\*`),
		Severity:       review.SeverityMedium,
		Confidence:     0.6,
		Category:       review.CategoryPerformance,
		Recommendation: "Select only the columns the caller needs.",
	},
	{
		Title:          "Unbounded fetch may need pagination",
		Pattern:        regexp.MustCompile(`\.findAll\(|\.find_all\(`),
		Severity:       review.SeverityMedium,
		Confidence:     0.6,
		Category:       review.CategoryPerformance,
		Recommendation: "Add pagination or a limit for large datasets.",
	},
	{
		Title:          "Nested loops may be O(n^2)",
		Pattern:        regexp.MustCompile(`(?i)for\s.*\sin\s.*for\s.*\sin\s`),
		Severity:       review.SeverityMedium,
		Confidence:     0.6,
		Category:       review.CategoryPerformance,
		Recommendation: "Check the input sizes; consider indexing one side.",
	},
	{
		Title:          "Blocking sleep in code",
		Pattern:        regexp.MustCompile(`time\.sleep`),
		Severity:       review.SeverityMedium,
		Confidence:     0.6,
		Category:       review.CategoryPerformance,
		Recommendation: "Replace fixed sleeps with events, retries, or timeouts.",
	},
	{
		Title:          "Debug statements in production code",
		Pattern:        regexp.MustCompile(`console\.log|\bprint\(`),
		Severity:       review.SeverityMedium,
		Confidence:     0.6,
		Category:       review.CategoryMaintainability,
		Recommendation: "Remove debug output or route it through the logger.",
	},
	{
		Title:          "Deprecated parameter usage",
		Pattern:        regexp.MustCompile(`(?i)deprecated\s*=|DeprecationWarning|@deprecated\b`),
		Severity:       review.SeverityMedium,
		Confidence:     0.6,
		Category:       review.CategoryDeprecation,
		Recommendation: "Migrate off the deprecated parameter before it is removed.",
	},
	{
		Title:          "Auth decorator change",
		Pattern:        regexp.MustCompile(`(?i)@login_required|@authenticated|@auth\b`),
		Severity:       review.SeverityMedium,
		Confidence:     0.8,
		Category:       review.CategoryAuth,
		Recommendation: "Ensure authentication changes are covered by tests.",
	},
	{
		Title:          "Auth middleware change",
		Pattern:        regexp.MustCompile(`(?i)middleware.*auth|auth.*middleware`),
		Severity:       review.SeverityMedium,
		Confidence:     0.8,
		Category:       review.CategoryAuth,
		Recommendation: "Ensure authentication changes are covered by tests.",
	},
	{
		Title:          "JWT or token handling change",
		Pattern:        regexp.MustCompile(`(?i)\bjwt\b|token.*verify`),
		Severity:       review.SeverityMedium,
		Confidence:     0.8,
		Category:       review.CategoryAuth,
		Recommendation: "Verify token validation and expiry handling are tested.",
	},
	{
		Title:          "Permission or role change",
		Pattern:        regexp.MustCompile(`(?i)\bpermission\b|\brole\b|access.*control`),
		Severity:       review.SeverityMedium,
		Confidence:     0.8,
		Category:       review.CategoryAuth,
		Recommendation: "Confirm access control changes against the intended policy.",
	},
}
