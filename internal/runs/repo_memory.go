package runs

import (
	"context"
	"sort"
	"sync"
	"time"

	"prreview-backend/internal/review"
)

// MemoryRepo stores runs in memory and is safe for concurrent use. It is
// the fallback when no database is configured.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Run
}

var _ Repo = (*MemoryRepo)(nil)

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Run)}
}

// Create stores the run.
func (r *MemoryRepo) Create(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[run.ID] = run
	return nil
}

// GetByID returns a run by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, runID string) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.byID[runID]
	if !ok {
		return Run{}, ErrNotFound
	}
	return run, nil
}

// MarkProcessing claims a pending run.
func (r *MemoryRepo) MarkProcessing(ctx context.Context, runID string, startedAt time.Time) error {
	return r.update(ctx, runID, func(run *Run) error {
		if run.Status != StatusPending {
			return ErrTerminal
		}
		run.Status = StatusProcessing
		run.StartedAt = &startedAt
		return nil
	})
}

// MarkCompleted finishes a processing run with its result.
func (r *MemoryRepo) MarkCompleted(ctx context.Context, runID string, result *review.Result, modelVersion, markdownComment string, completedAt time.Time) error {
	return r.update(ctx, runID, func(run *Run) error {
		if run.Status != StatusProcessing {
			return ErrTerminal
		}
		run.Status = StatusCompleted
		run.Result = result
		run.ModelVersion = modelVersion
		run.MarkdownComment = markdownComment
		run.CompletedAt = &completedAt
		return nil
	})
}

// MarkFailed fails a non-terminal run.
func (r *MemoryRepo) MarkFailed(ctx context.Context, runID, errorCode, errorMessage string, completedAt time.Time) error {
	return r.update(ctx, runID, func(run *Run) error {
		if run.Terminal() {
			return ErrTerminal
		}
		run.Status = StatusFailed
		run.ErrorCode = errorCode
		run.ErrorMessage = errorMessage
		run.CompletedAt = &completedAt
		return nil
	})
}

// List returns runs, newest first, with limit/offset.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	all := make([]Run, 0, len(r.byID))
	for _, run := range r.byID {
		all = append(all, run)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return []Run{}, nil
	}
	end := len(all)
	if offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

func (r *MemoryRepo) update(ctx context.Context, runID string, apply func(*Run) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.byID[runID]
	if !ok {
		return ErrNotFound
	}
	if err := apply(&run); err != nil {
		return err
	}
	run.UpdatedAt = time.Now().UTC()
	r.byID[runID] = run
	return nil
}
