package runs

import (
	"context"
	"time"

	"prreview-backend/internal/review"
)

// Repo defines persistence operations for analysis runs. Transitions are
// status-guarded: MarkProcessing only claims a pending run, MarkCompleted
// only finishes a processing run, MarkFailed only fails a non-terminal run.
// Implementations return ErrTerminal when a guard rejects the update.
type Repo interface {
	Create(ctx context.Context, run Run) error
	GetByID(ctx context.Context, runID string) (Run, error)
	MarkProcessing(ctx context.Context, runID string, startedAt time.Time) error
	MarkCompleted(ctx context.Context, runID string, result *review.Result, modelVersion, markdownComment string, completedAt time.Time) error
	MarkFailed(ctx context.Context, runID, errorCode, errorMessage string, completedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]Run, error)
}
