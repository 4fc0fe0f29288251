package runs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"prreview-backend/internal/changeset"
	"prreview-backend/internal/github"
	"prreview-backend/internal/heuristic"
	"prreview-backend/internal/llm"
)

const testDiff = `diff --git a/app/config.py b/app/config.py
index 1111111..2222222 100644
--- a/app/config.py
+++ b/app/config.py
@@ -10,3 +10,4 @@
 import os
+API_KEY = "sk-live-abcdef"
 DEBUG = False
 TIMEOUT = 30
`

const modelResponse = `{
	"pr_summary": {"what_changed": "Adds a config key", "why_it_changed": "Config change", "key_files": ["app/config.py"]},
	"findings": [
		{"title": "Hardcoded credential", "severity": "critical", "confidence": 0.9, "category": "secret", "file": "app/config.py", "evidence": "API_KEY = ...", "recommendation": "Use env config"}
	],
	"risk_matrix": {"security": "low", "performance": "low", "breaking_change": "low", "maintainability": "low"},
	"test_plan": {"unit_tests": [], "integration_tests": [], "edge_cases": []},
	"merge_readiness": {"score": 95, "blockers": [], "notes": "model notes"}
}`

type staticModelClient struct {
	resp string
	err  error
}

func (s staticModelClient) AnalyzeChange(ctx context.Context, input llm.Input) (json.RawMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.resp), nil
}

func newService(t *testing.T, model *llm.Analyzer, ghHandler http.Handler) (*Service, *MemoryRepo) {
	t.Helper()
	apiURL := ""
	if ghHandler != nil {
		srv := httptest.NewServer(ghHandler)
		t.Cleanup(srv.Close)
		apiURL = srv.URL
	}
	gh := github.NewClient("", apiURL, 5*time.Second)
	repo := NewMemoryRepo()
	svc := &Service{
		Repo:      repo,
		Resolver:  changeset.NewResolver(gh),
		Heuristic: heuristic.New(),
		Model:     model,
		GH:        gh,
	}
	return svc, repo
}

func createPendingRun(t *testing.T, repo *MemoryRepo, run Run) Run {
	t.Helper()
	if run.ID == "" {
		run.ID = "run-1"
	}
	run.Status = StatusPending
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if err := repo.Create(context.Background(), run); err != nil {
		t.Fatalf("create run: %v", err)
	}
	return run
}

func TestCreateRejectsBadDescriptors(t *testing.T) {
	svc, _ := newService(t, nil, nil)

	cases := []CreateRequest{
		{},
		{PRURL: "https://github.com/octo/demo/pull/7", DiffText: testDiff},
		{PRURL: "https://example.com/not/a/pull/7"},
	}
	for _, req := range cases {
		_, err := svc.Create(context.Background(), req)
		var inputErr *changeset.InputError
		if !errors.As(err, &inputErr) {
			t.Fatalf("expected InputError for %+v, got %v", req, err)
		}
	}
}

func TestCreateStoresPRReference(t *testing.T) {
	svc, repo := newService(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	run, err := svc.Create(context.Background(), CreateRequest{PRURL: "https://github.com/octo/demo/pull/7"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if run.Status != StatusPending {
		t.Fatalf("new runs start pending, got %s", run.Status)
	}
	if run.Repo != "octo/demo" || run.PRNumber != 7 {
		t.Fatalf("expected parsed PR reference, got %q #%d", run.Repo, run.PRNumber)
	}
	waitForTerminal(t, repo, run.ID)
}

func TestCompleteHeuristicOnly(t *testing.T) {
	svc, repo := newService(t, nil, nil)
	run := createPendingRun(t, repo, Run{DiffText: testDiff})

	svc.completeAsync(context.Background(), run.ID)

	got, err := repo.GetByID(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%s: %s)", got.Status, got.ErrorCode, got.ErrorMessage)
	}
	if got.ModelVersion != heuristic.ModelVersion {
		t.Fatalf("expected heuristic model version, got %q", got.ModelVersion)
	}
	if got.Result == nil {
		t.Fatalf("completed run must carry a result")
	}
	if err := got.Result.Validate(); err != nil {
		t.Fatalf("stored result must validate: %v", err)
	}
	if got.MarkdownComment == "" {
		t.Fatalf("completed run must carry a rendered comment")
	}
	if got.CompletedAt == nil || got.StartedAt == nil {
		t.Fatalf("timestamps must be set on completion")
	}
}

func TestCompleteUsesModelAndRecomputesScore(t *testing.T) {
	analyzer := llm.NewAnalyzer(staticModelClient{resp: modelResponse}, "openai/test", 2)
	svc, repo := newService(t, analyzer, nil)
	run := createPendingRun(t, repo, Run{DiffText: testDiff})

	svc.completeAsync(context.Background(), run.ID)

	got, _ := repo.GetByID(context.Background(), run.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.ModelVersion != "openai/test" {
		t.Fatalf("expected model version tag, got %q", got.ModelVersion)
	}
	// One critical finding: 100 - 30 - 2 = 68, regardless of the model's
	// self-reported score.
	if got.Result.MergeReadiness.Score != 68 {
		t.Fatalf("expected recomputed score 68, got %d", got.Result.MergeReadiness.Score)
	}
	if got.Result.RiskMatrix.Security != "critical" {
		t.Fatalf("risk matrix must be recomputed from findings, got %s", got.Result.RiskMatrix.Security)
	}
}

func TestModelFailureFallsBackToHeuristics(t *testing.T) {
	analyzer := llm.NewAnalyzer(staticModelClient{resp: "not json"}, "openai/test", 1)
	svc, repo := newService(t, analyzer, nil)
	run := createPendingRun(t, repo, Run{DiffText: testDiff})

	svc.completeAsync(context.Background(), run.ID)

	got, _ := repo.GetByID(context.Background(), run.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("model failure must not fail the run, got %s (%s)", got.Status, got.ErrorMessage)
	}
	if got.ModelVersion != heuristic.ModelVersion {
		t.Fatalf("fallback result must be tagged heuristic, got %q", got.ModelVersion)
	}
}

func TestModelUpstreamFailureFallsBack(t *testing.T) {
	analyzer := llm.NewAnalyzer(staticModelClient{err: errors.New("status code: 503")}, "openai/test", 1)
	svc, repo := newService(t, analyzer, nil)
	run := createPendingRun(t, repo, Run{DiffText: testDiff})

	svc.completeAsync(context.Background(), run.ID)

	got, _ := repo.GetByID(context.Background(), run.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("upstream model failure must not fail the run, got %s", got.Status)
	}
	if got.ModelVersion != heuristic.ModelVersion {
		t.Fatalf("fallback result must be tagged heuristic, got %q", got.ModelVersion)
	}
}

func TestResolverFailureFailsRun(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		wantCode string
	}{
		{"not found", http.StatusNotFound, ErrorCodeInput},
		{"forbidden", http.StatusForbidden, ErrorCodeInput},
		{"bad gateway", http.StatusBadGateway, ErrorCodeUpstream},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo := newService(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			run := createPendingRun(t, repo, Run{
				PRURL:    "https://github.com/octo/demo/pull/7",
				Repo:     "octo/demo",
				PRNumber: 7,
			})

			svc.completeAsync(context.Background(), run.ID)

			got, _ := repo.GetByID(context.Background(), run.ID)
			if got.Status != StatusFailed {
				t.Fatalf("expected failed, got %s", got.Status)
			}
			if got.ErrorCode != tc.wantCode {
				t.Fatalf("expected error code %s, got %s", tc.wantCode, got.ErrorCode)
			}
			if got.ErrorMessage == "" {
				t.Fatalf("failed run must carry an error message")
			}
			if got.Result != nil {
				t.Fatalf("failed run must not carry a result")
			}
		})
	}
}

func TestTerminalRunIsImmutable(t *testing.T) {
	svc, repo := newService(t, nil, nil)
	run := createPendingRun(t, repo, Run{DiffText: testDiff})

	svc.completeAsync(context.Background(), run.ID)
	first, _ := repo.GetByID(context.Background(), run.ID)
	if first.Status != StatusCompleted {
		t.Fatalf("setup: expected completed, got %s", first.Status)
	}

	// A duplicate claim attempt must leave the run untouched.
	svc.completeAsync(context.Background(), run.ID)
	second, _ := repo.GetByID(context.Background(), run.ID)
	if second.Status != StatusCompleted {
		t.Fatalf("terminal run must stay completed, got %s", second.Status)
	}
	if !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Fatalf("terminal run timestamps must not change")
	}
}

func TestSanitizeError(t *testing.T) {
	msg := sanitizeError(errors.New("line one\nline two\r\n" + strings.Repeat("x", 600)))
	if strings.ContainsAny(msg, "\n\r") {
		t.Fatalf("sanitized message must be single-line")
	}
	if len(msg) > 500 {
		t.Fatalf("sanitized message must be capped at 500 chars, got %d", len(msg))
	}
}

func TestPostComment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"html_url": "https://github.com/octo/demo/pull/7#issuecomment-9"}`))
	})
	svc, repo := newService(t, nil, mux)
	run := createPendingRun(t, repo, Run{
		DiffText: testDiff,
		Repo:     "octo/demo",
		PRNumber: 7,
	})
	svc.completeAsync(context.Background(), run.ID)

	url, err := svc.PostComment(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("post comment: %v", err)
	}
	if url != "https://github.com/octo/demo/pull/7#issuecomment-9" {
		t.Fatalf("unexpected comment url %q", url)
	}
}

func TestPostCommentRequiresCompletedPRRun(t *testing.T) {
	svc, repo := newService(t, nil, nil)

	pending := createPendingRun(t, repo, Run{ID: "pending-run", DiffText: testDiff})
	if _, err := svc.PostComment(context.Background(), pending.ID); err == nil {
		t.Fatalf("expected rejection for non-completed run")
	}

	diffOnly := createPendingRun(t, repo, Run{ID: "diff-run", DiffText: testDiff})
	svc.completeAsync(context.Background(), diffOnly.ID)
	if _, err := svc.PostComment(context.Background(), diffOnly.ID); err == nil {
		t.Fatalf("expected rejection for raw-diff run")
	}

	if _, err := svc.PostComment(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func waitForTerminal(t *testing.T, repo Repo, runID string) Run {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run, err := repo.GetByID(context.Background(), runID)
		if err == nil && run.Terminal() {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s never reached a terminal state", runID)
	return Run{}
}
