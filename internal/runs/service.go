package runs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"prreview-backend/internal/changeset"
	"prreview-backend/internal/github"
	"prreview-backend/internal/heuristic"
	"prreview-backend/internal/llm"
	"prreview-backend/internal/review"
	"prreview-backend/internal/shared/metrics"
	"prreview-backend/internal/shared/telemetry"
)

// CreateRequest is a validated submission.
type CreateRequest struct {
	PRURL        string
	DiffText     string
	UseRepoRules bool
	RulesText    string
	LanguageHint string
}

// Service orchestrates the run lifecycle: it creates pending runs, claims
// them exactly once, sequences resolution, analysis and scoring, and is the
// only writer of run state.
type Service struct {
	Repo       Repo
	Resolver   *changeset.Resolver
	Heuristic  *heuristic.Analyzer
	Model      *llm.Analyzer
	GH         *github.Client
	RunTimeout time.Duration
}

// Create validates the submission, persists a pending run and kicks off
// asynchronous completion. Input shape errors surface here so callers get
// an immediate rejection instead of a failed run.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Run, error) {
	hasURL := strings.TrimSpace(req.PRURL) != ""
	hasDiff := strings.TrimSpace(req.DiffText) != ""
	switch {
	case hasURL && hasDiff:
		return Run{}, changeset.NewInputError(changeset.InputBad, "provide either pr_url or diff_text, not both")
	case !hasURL && !hasDiff:
		return Run{}, changeset.NewInputError(changeset.InputBad, "provide either pr_url or diff_text")
	}

	run := Run{
		ID:           uuid.NewString(),
		UseRepoRules: req.UseRepoRules,
		RulesText:    req.RulesText,
		LanguageHint: req.LanguageHint,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if hasURL {
		owner, repo, number, err := changeset.ParsePRURL(req.PRURL)
		if err != nil {
			return Run{}, err
		}
		run.PRURL = strings.TrimSpace(req.PRURL)
		run.Repo = owner + "/" + repo
		run.PRNumber = number
	} else {
		run.DiffText = req.DiffText
	}

	if err := s.Repo.Create(ctx, run); err != nil {
		return Run{}, err
	}

	go s.completeAsync(backgroundWithRequestID(ctx), run.ID)

	return run, nil
}

// Get returns a run by ID.
func (s *Service) Get(ctx context.Context, runID string) (Run, error) {
	if runID == "" {
		return Run{}, errors.New("runID is required")
	}
	return s.Repo.GetByID(ctx, runID)
}

// List returns runs ordered newest-first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Run, error) {
	return s.Repo.List(ctx, limit, offset)
}

// PostComment posts the stored markdown review to the run's pull request
// and returns the comment URL.
func (s *Service) PostComment(ctx context.Context, runID string) (string, error) {
	run, err := s.Repo.GetByID(ctx, runID)
	if err != nil {
		return "", err
	}
	if run.Status != StatusCompleted {
		return "", changeset.NewInputError(changeset.InputBad, "run %s is not completed", runID)
	}
	if run.Repo == "" || run.PRNumber == 0 {
		return "", changeset.NewInputError(changeset.InputBad, "run %s was not submitted from a pull request URL", runID)
	}
	if run.MarkdownComment == "" {
		return "", changeset.NewInputError(changeset.InputBad, "run %s has no rendered comment", runID)
	}

	owner, repo, ok := strings.Cut(run.Repo, "/")
	if !ok {
		return "", fmt.Errorf("malformed repo reference %q", run.Repo)
	}
	url, err := s.GH.PostComment(ctx, owner, repo, run.PRNumber, run.MarkdownComment)
	if err != nil {
		if github.IsClientError(err) {
			return "", changeset.NewInputError(changeset.InputForbidden, "comment rejected by host: %v", err)
		}
		return "", fmt.Errorf("post comment: %w", err)
	}
	return url, nil
}

func (s *Service) completeAsync(ctx context.Context, runID string) {
	defer func() {
		if r := recover(); r != nil {
			s.failRun(ctx, runID, ErrorCodeInternal, fmt.Errorf("panic: %v", r), nil)
		}
	}()

	if s.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.RunTimeout)
		defer cancel()
	}

	startedAt := time.Now().UTC()
	if err := s.Repo.MarkProcessing(ctx, runID, startedAt); err != nil {
		if errors.Is(err, ErrTerminal) {
			return
		}
		s.failRun(ctx, runID, ErrorCodeInternal, fmt.Errorf("claim run: %w", err), &startedAt)
		return
	}

	run, err := s.Repo.GetByID(ctx, runID)
	if err != nil {
		s.failRun(ctx, runID, ErrorCodeInternal, fmt.Errorf("run lookup: %w", err), &startedAt)
		return
	}
	metrics.IncRunStarted()
	telemetry.Info("run.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"run_id":            runID,
		"status":            StatusProcessing,
		"status_transition": "pending->processing",
	})

	cs, err := s.Resolver.Resolve(ctx, changeset.Input{PRURL: run.PRURL, DiffText: run.DiffText})
	if err != nil {
		s.failRun(ctx, runID, classifyFailure(err), err, &startedAt)
		return
	}

	rulesText := run.RulesText
	if run.UseRepoRules && rulesText == "" && cs.Meta != nil {
		fetched, rulesErr := s.Resolver.FetchRepoRules(ctx, cs.Meta)
		if rulesErr != nil {
			// Rules are advisory; analysis proceeds without them.
			telemetry.Error("run.rules_fetch", map[string]any{
				"request_id": requestIDFromContext(ctx),
				"run_id":     runID,
				"error":      sanitizeError(rulesErr),
			})
		}
		rulesText = fetched
	}

	result, modelVersion := s.analyze(ctx, runID, cs, run, rulesText)

	// Merge readiness and risk matrix are always recomputed from findings
	// so both analyzer modes share one scoring policy.
	result.MergeReadiness = review.Score(result.Findings)
	result.RiskMatrix = review.BuildRiskMatrix(result.Findings)
	markdown := review.RenderMarkdown(*result)

	completedAt := time.Now().UTC()
	if err := s.Repo.MarkCompleted(ctx, runID, result, modelVersion, markdown, completedAt); err != nil {
		if errors.Is(err, ErrTerminal) {
			return
		}
		s.failRun(ctx, runID, ErrorCodeInternal, fmt.Errorf("store result: %w", err), &startedAt)
		return
	}
	metrics.IncRunCompleted()
	metrics.ObserveRunDurationMs(durationMs(&startedAt, &completedAt))
	telemetry.Info("run.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"run_id":            runID,
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
		"model_version":     modelVersion,
		"duration_ms":       durationMs(&startedAt, &completedAt),
	})
}

// analyze runs model analysis when configured and falls back to heuristics
// on any model failure. Model failures never fail a run.
func (s *Service) analyze(ctx context.Context, runID string, cs *changeset.ChangeSet, run Run, rulesText string) (*review.Result, string) {
	if s.Model != nil {
		result, err := s.Model.Analyze(ctx, buildModelInput(cs, run, rulesText))
		if err == nil {
			return result, s.Model.ModelVersion()
		}
		var modelErr *llm.ModelError
		kind := llm.KindUpstream
		if errors.As(err, &modelErr) {
			kind = modelErr.Kind
		}
		metrics.IncRunFallback()
		telemetry.Info("run.fallback", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"run_id":     runID,
			"kind":       string(kind),
			"error":      sanitizeError(err),
		})
	}
	return s.Heuristic.Analyze(cs), heuristic.ModelVersion
}

func buildModelInput(cs *changeset.ChangeSet, run Run, rulesText string) llm.Input {
	input := llm.Input{
		Files:        cs.Files,
		Diff:         cs.Diff,
		RulesText:    rulesText,
		LanguageHint: run.LanguageHint,
	}
	if cs.Meta != nil {
		input.Title = cs.Meta.Title
		input.Body = cs.Meta.Body
		input.Commits = cs.Meta.Commits
	}
	return input
}

func (s *Service) failRun(ctx context.Context, runID, code string, err error, startedAt *time.Time) {
	msg := sanitizeError(err)
	completedAt := time.Now().UTC()
	if updateErr := s.Repo.MarkFailed(context.Background(), runID, code, msg, completedAt); updateErr != nil {
		if errors.Is(updateErr, ErrTerminal) {
			return
		}
		telemetry.Error("run.fail_update", map[string]any{
			"run_id": runID,
			"error":  sanitizeError(updateErr),
			"cause":  msg,
		})
	}
	metrics.IncRunFailed()
	if startedAt != nil {
		metrics.ObserveRunDurationMs(durationMs(startedAt, &completedAt))
	}
	telemetry.Info("run.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"run_id":            runID,
		"status":            StatusFailed,
		"status_transition": "processing->failed",
		"error_code":        code,
		"error":             msg,
		"duration_ms":       durationMs(startedAt, &completedAt),
	})
}

func classifyFailure(err error) string {
	var inputErr *changeset.InputError
	if errors.As(err, &inputErr) {
		return ErrorCodeInput
	}
	var upstreamErr *changeset.UpstreamError
	if errors.As(err, &upstreamErr) {
		return ErrorCodeUpstream
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeUpstream
	}
	return ErrorCodeInternal
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}
