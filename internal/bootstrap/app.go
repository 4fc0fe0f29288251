// Package bootstrap assembles application dependencies.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"prreview-backend/internal/changeset"
	"prreview-backend/internal/github"
	"prreview-backend/internal/heuristic"
	"prreview-backend/internal/llm"
	"prreview-backend/internal/llm/openai"
	"prreview-backend/internal/runs"
	"prreview-backend/internal/shared/config"
	"prreview-backend/internal/shared/server"
	"prreview-backend/internal/shared/storage/db"
)

const defaultPollWindow = 1 * time.Second

var errDatabaseRequired = errors.New("DATABASE_URL is required")

// App holds shared dependencies.
type App struct {
	Config      config.Config
	Router      *gin.Engine
	DB          *sql.DB
	RunsRepo    runs.Repo
	RunsService *runs.Service
	RunsHandler *runs.Handler
}

// Build prepares shared dependencies and the router. Without a database it
// falls back to in-memory storage in dev-like environments; without an
// OpenAI key analysis runs heuristics only.
func Build(cfg config.Config) (*App, error) {
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var repo runs.Repo
	if sqlDB != nil {
		repo = &runs.PGRepo{DB: sqlDB}
	} else {
		repo = runs.NewMemoryRepo()
	}

	gh := github.NewClient(cfg.GitHubToken, cfg.GitHubAPIURL, cfg.GitHubTimeout)

	var modelAnalyzer *llm.Analyzer
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.ModelTimeout)
		if err != nil {
			return nil, err
		}
		wrapped := llm.NewRetryingClient(client, cfg.UpstreamRetryLimit)
		modelAnalyzer = llm.NewAnalyzer(wrapped, "openai/"+cfg.LLMModel, cfg.SchemaRetryLimit)
	} else {
		log.Printf("bootstrap: OPENAI_API_KEY empty; analysis runs heuristics only")
	}

	svc := &runs.Service{
		Repo:       repo,
		Resolver:   changeset.NewResolver(gh),
		Heuristic:  heuristic.New(),
		Model:      modelAnalyzer,
		GH:         gh,
		RunTimeout: cfg.RunTimeout,
	}
	handler := runs.NewHandler(svc, defaultPollWindow)

	app := &App{
		Config:      cfg,
		DB:          sqlDB,
		RunsRepo:    repo,
		RunsService: svc,
		RunsHandler: handler,
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:      cfg,
		RunsHandler: handler,
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repository")
			return nil, nil
		}
		return nil, errDatabaseRequired
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repository: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return sqlDB, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
