package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"prreview-backend/internal/review"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

var _ Repo = (*PGRepo)(nil)

const runColumns = `id, pr_url, repo, pr_number, diff_text, use_repo_rules, rules_text, language_hint,
       status, result, model_version, markdown_comment, error_code, error_message,
       created_at, started_at, completed_at, updated_at`

// Create inserts a new pending run.
func (r *PGRepo) Create(ctx context.Context, run Run) error {
	const query = `
INSERT INTO analysis_runs (
	id, pr_url, repo, pr_number, diff_text, use_repo_rules, rules_text, language_hint, status, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.DB.ExecContext(ctx, query,
		run.ID,
		nullString(run.PRURL),
		nullString(run.Repo),
		nullInt(run.PRNumber),
		nullString(run.DiffText),
		run.UseRepoRules,
		nullString(run.RulesText),
		nullString(run.LanguageHint),
		run.Status,
		run.CreatedAt,
	)
	return err
}

// GetByID returns a run by ID.
func (r *PGRepo) GetByID(ctx context.Context, runID string) (Run, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs WHERE id = $1 LIMIT 1`
	run, err := scanRun(r.DB.QueryRowContext(ctx, query, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, err
	}
	return run, nil
}

// MarkProcessing claims a pending run. Claiming is the only transition out
// of pending, so a zero-row update on an existing run means it was already
// claimed or finished.
func (r *PGRepo) MarkProcessing(ctx context.Context, runID string, startedAt time.Time) error {
	const query = `
UPDATE analysis_runs
SET status = 'processing',
    started_at = $1,
    updated_at = now()
WHERE id = $2::uuid AND status = 'pending'`
	return r.guardedUpdate(ctx, runID, query, startedAt, runID)
}

// MarkCompleted finishes a processing run with its result.
func (r *PGRepo) MarkCompleted(ctx context.Context, runID string, result *review.Result, modelVersion, markdownComment string, completedAt time.Time) error {
	const query = `
UPDATE analysis_runs
SET status = 'completed',
    result = $1::jsonb,
    model_version = $2,
    markdown_comment = $3,
    completed_at = $4,
    updated_at = now()
WHERE id = $5::uuid AND status = 'processing'`

	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return r.guardedUpdate(ctx, runID, query, payload, modelVersion, markdownComment, completedAt, runID)
}

// MarkFailed fails a run that has not yet reached a terminal state.
func (r *PGRepo) MarkFailed(ctx context.Context, runID, errorCode, errorMessage string, completedAt time.Time) error {
	const query = `
UPDATE analysis_runs
SET status = 'failed',
    error_code = $1,
    error_message = $2,
    completed_at = $3,
    updated_at = now()
WHERE id = $4::uuid AND status IN ('pending', 'processing')`
	return r.guardedUpdate(ctx, runID, query, errorCode, errorMessage, completedAt, runID)
}

// List returns runs ordered newest-first.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + runColumns + ` FROM analysis_runs ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// guardedUpdate runs a status-guarded UPDATE and maps a zero-row result to
// ErrNotFound or ErrTerminal depending on whether the run exists.
func (r *PGRepo) guardedUpdate(ctx context.Context, runID, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, runID); errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return ErrTerminal
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var prURL, repo, diffText, rulesText, languageHint sql.NullString
	var modelVersion, markdownComment, errorCode, errorMessage sql.NullString
	var prNumber sql.NullInt64
	var result sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&run.ID,
		&prURL,
		&repo,
		&prNumber,
		&diffText,
		&run.UseRepoRules,
		&rulesText,
		&languageHint,
		&run.Status,
		&result,
		&modelVersion,
		&markdownComment,
		&errorCode,
		&errorMessage,
		&run.CreatedAt,
		&startedAt,
		&completedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return Run{}, err
	}

	run.PRURL = prURL.String
	run.Repo = repo.String
	run.PRNumber = int(prNumber.Int64)
	run.DiffText = diffText.String
	run.RulesText = rulesText.String
	run.LanguageHint = languageHint.String
	run.ModelVersion = modelVersion.String
	run.MarkdownComment = markdownComment.String
	run.ErrorCode = errorCode.String
	run.ErrorMessage = errorMessage.String
	if result.Valid {
		var parsed review.Result
		if err := json.Unmarshal([]byte(result.String), &parsed); err == nil {
			run.Result = &parsed
		}
	}
	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return run, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
