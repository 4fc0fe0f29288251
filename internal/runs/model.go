package runs

import (
	"time"

	"prreview-backend/internal/review"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Run represents one analysis run from submission to terminal state.
type Run struct {
	ID              string         `json:"id"`
	PRURL           string         `json:"prUrl,omitempty"`
	Repo            string         `json:"repo,omitempty"`
	PRNumber        int            `json:"prNumber,omitempty"`
	DiffText        string         `json:"-"`
	UseRepoRules    bool           `json:"useRepoRules"`
	RulesText       string         `json:"-"`
	LanguageHint    string         `json:"languageHint,omitempty"`
	Status          string         `json:"status"`
	Result          *review.Result `json:"result,omitempty"`
	ModelVersion    string         `json:"modelVersion,omitempty"`
	MarkdownComment string         `json:"-"`
	ErrorCode       string         `json:"errorCode,omitempty"`
	ErrorMessage    string         `json:"errorMessage,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	StartedAt       *time.Time     `json:"startedAt,omitempty"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Terminal reports whether the run has reached a final state.
func (r Run) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}
