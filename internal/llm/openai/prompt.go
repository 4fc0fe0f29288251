package openai

import (
	"fmt"
	"strings"

	"prreview-backend/internal/llm"
)

const (
	maxPromptFiles   = 50
	maxPromptCommits = 10
)

const systemPrompt = `You are an expert code reviewer. Analyze the provided PR/diff and output a structured JSON review.

Your review should be actionable, specific, and prioritized. Focus on:
1. Security vulnerabilities
2. Performance issues
3. Breaking changes
4. Code quality and maintainability
5. Missing tests

Be direct and specific. Reference exact files and patterns when possible.

Output format (JSON):
{
  "pr_summary": {
    "what_changed": "Brief description of changes",
    "why_it_changed": "Inferred purpose/motivation",
    "key_files": ["file1.py", "file2.js"]
  },
  "findings": [
    {
      "title": "Issue title",
      "severity": "low|medium|high|critical",
      "confidence": 0.0-1.0,
      "category": "security|secret|injection|auth|performance|breaking_change|deprecation|maintainability",
      "file": "path/to/file.py",
      "line_number": 42,
      "evidence": "Code snippet or pattern found",
      "recommendation": "What to do about it"
    }
  ],
  "risk_matrix": {
    "security": "low|medium|high|critical",
    "performance": "low|medium|high|critical",
    "breaking_change": "low|medium|high|critical",
    "maintainability": "low|medium|high|critical"
  },
  "test_plan": {
    "unit_tests": ["Test suggestion 1"],
    "integration_tests": ["Test suggestion 1"],
    "edge_cases": ["Edge case to consider"]
  },
  "merge_readiness": {
    "score": 0-100,
    "blockers": ["Critical issue that must be fixed"],
    "notes": "Overall assessment"
  }
}`

func buildUserPrompt(input llm.Input) string {
	title := input.Title
	if title == "" {
		title = "Uploaded Diff"
	}

	parts := []string{fmt.Sprintf("# PR Title: %s", title)}
	if input.Body != "" {
		parts = append(parts, fmt.Sprintf("\n## Description:\n%s", input.Body))
	}

	files := input.Files
	if len(files) > maxPromptFiles {
		files = files[:maxPromptFiles]
	}
	parts = append(parts, fmt.Sprintf("\n## Files Changed (%d):", len(input.Files)))
	parts = append(parts, bulleted(files))

	parts = append(parts, "\n## Commit Messages:")
	commits := input.Commits
	if len(commits) > maxPromptCommits {
		commits = commits[:maxPromptCommits]
	}
	if len(commits) > 0 {
		parts = append(parts, bulleted(commits))
	} else {
		parts = append(parts, "No commit messages available")
	}

	parts = append(parts, fmt.Sprintf("\n## Diff:\n```\n%s\n```", input.Diff))

	if input.RulesText != "" {
		parts = append(parts, fmt.Sprintf("\n## Custom Review Rules:\n```yaml\n%s\n```", input.RulesText))
	}
	if input.LanguageHint != "" {
		parts = append(parts, fmt.Sprintf("\n## Language Hint: %s", input.LanguageHint))
	}

	return strings.Join(parts, "\n")
}

func bulleted(items []string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}
