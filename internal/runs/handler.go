package runs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"prreview-backend/internal/changeset"
	"prreview-backend/internal/shared/server/middleware"
	"prreview-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the runs service.
type Handler struct {
	Svc     *Service
	limiter *pollLimiter
}

// NewHandler constructs a Handler. pollWindow throttles per-caller status
// polling; zero disables it.
func NewHandler(svc *Service, pollWindow time.Duration) *Handler {
	return &Handler{
		Svc:     svc,
		limiter: newPollLimiter(pollWindow, nil),
	}
}

// RegisterRoutes attaches run routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.startRun)
	rg.GET("/runs", h.listRuns)
	rg.GET("/runs/:id", h.getRun)
	rg.POST("/runs/:id/comment", h.postComment)
}

type analyzeRequest struct {
	PRURL        string `json:"pr_url"`
	DiffText     string `json:"diff_text"`
	UseRepoRules bool   `json:"use_repo_rules"`
	RulesText    string `json:"rules_text"`
	LanguageHint string `json:"language_hint"`
}

func (h *Handler) startRun(c *gin.Context) {
	var req analyzeRequest
	if err := decodeStrict(c.Request.Body, &req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	run, err := h.Svc.Create(requestContext(c), CreateRequest{
		PRURL:        req.PRURL,
		DiffText:     req.DiffText,
		UseRepoRules: req.UseRepoRules,
		RulesText:    req.RulesText,
		LanguageHint: req.LanguageHint,
	})
	if err != nil {
		var inputErr *changeset.InputError
		if errors.As(err, &inputErr) {
			respond.Error(c, http.StatusBadRequest, "validation_error", inputErr.Msg, nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
		return
	}

	respond.JSON(c, http.StatusAccepted, gin.H{
		"runId":  run.ID,
		"status": run.Status,
	})
}

func (h *Handler) getRun(c *gin.Context) {
	runID := c.Param("id")
	if runID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "run id is required", nil)
		return
	}
	if !h.limiter.Allow(c.ClientIP(), runID) {
		c.Header("Retry-After", strconv.Itoa(h.limiter.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "polling too frequently", nil)
		return
	}

	run, err := h.Svc.Get(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "run not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch run", nil)
		return
	}

	respond.OK(c, runResponse(run))
}

func (h *Handler) listRuns(c *gin.Context) {
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)

	all, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list runs", nil)
		return
	}

	items := make([]gin.H, 0, len(all))
	for _, run := range all {
		item := gin.H{
			"runId":     run.ID,
			"status":    run.Status,
			"createdAt": run.CreatedAt,
		}
		if run.PRURL != "" {
			item["prUrl"] = run.PRURL
		}
		if run.Status == StatusCompleted && run.Result != nil {
			item["mergeReadinessScore"] = run.Result.MergeReadiness.Score
			item["findingCount"] = len(run.Result.Findings)
		}
		items = append(items, item)
	}
	respond.OK(c, items)
}

func (h *Handler) postComment(c *gin.Context) {
	runID := c.Param("id")
	if runID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "run id is required", nil)
		return
	}

	url, err := h.Svc.PostComment(c.Request.Context(), runID)
	if err != nil {
		var inputErr *changeset.InputError
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "run not found", nil)
		case errors.As(err, &inputErr) && inputErr.Kind == changeset.InputForbidden:
			respond.Error(c, http.StatusForbidden, "forbidden", inputErr.Msg, nil)
		case errors.As(err, &inputErr):
			respond.Error(c, http.StatusBadRequest, "validation_error", inputErr.Msg, nil)
		default:
			respond.Error(c, http.StatusBadGateway, "upstream_error", "failed to post comment", nil)
		}
		return
	}

	respond.OK(c, gin.H{"commentUrl": url})
}

func runResponse(run Run) gin.H {
	resp := gin.H{
		"id":        run.ID,
		"status":    run.Status,
		"createdAt": run.CreatedAt,
	}
	if run.PRURL != "" {
		resp["prUrl"] = run.PRURL
	}
	if run.CompletedAt != nil {
		resp["completedAt"] = run.CompletedAt
	}
	switch run.Status {
	case StatusCompleted:
		resp["result"] = run.Result
		resp["modelVersion"] = run.ModelVersion
		resp["markdownComment"] = run.MarkdownComment
	case StatusFailed:
		resp["errorCode"] = run.ErrorCode
		resp["errorMessage"] = run.ErrorMessage
	}
	return resp
}

// decodeStrict rejects unknown fields so typos in option names surface as
// errors instead of silently defaulting.
func decodeStrict(body io.Reader, dst any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

func queryInt(c *gin.Context, name string, fallback int) int {
	v := c.Query(name)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func requestContext(c *gin.Context) context.Context {
	return WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
}
