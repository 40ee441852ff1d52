// Package app provides application-level wiring and dependency injection
// for the driftscope server following hexagonal architecture.
package app

import (
	"database/sql"
	"log/slog"

	"driftscope/internal/config"
	"driftscope/internal/db/repository"
	"driftscope/internal/domain"
	"driftscope/internal/runclient"
	"driftscope/internal/service/action"
	"driftscope/internal/service/lineage"
)

// Deps holds the external dependencies that main() must provide.
// These are things the app package cannot (or should not) create itself:
// database handles and config.
type Deps struct {
	Cfg     *config.Config
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger

	// RunClient overrides the runner client built from config.
	// Used by tests to inject a fake runner.
	RunClient domain.RunClient
}

// App holds the fully-wired application services.
type App struct {
	Diff    *lineage.DiffService
	Actions *action.Service
	Checks  domain.CheckRepository
}

// New wires repositories and services from the provided deps.
func New(deps Deps) *App {
	cfg := deps.Cfg

	var checks domain.CheckRepository
	if deps.WriteDB != nil && deps.ReadDB != nil {
		checks = repository.NewCheckRepo(deps.WriteDB, deps.ReadDB)
	}

	client := deps.RunClient
	if client == nil {
		client = runclient.New(cfg.RunnerURL, cfg.RunnerToken)
	}

	diffSvc := lineage.NewDiffService(deps.Logger, cfg.MaxTraversalDegree)
	actionSvc := action.NewService(client, checks, deps.Logger, cfg.PollInterval)

	return &App{
		Diff:    diffSvc,
		Actions: actionSvc,
		Checks:  checks,
	}
}
