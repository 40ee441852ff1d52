// Package api exposes the lineage diff engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"driftscope/internal/domain"
	"driftscope/internal/middleware"
	"driftscope/internal/service/action"
	"driftscope/internal/service/lineage"
	"driftscope/internal/service/projection"
)

// Handler holds the services behind the HTTP surface.
type Handler struct {
	diff    *lineage.DiffService
	actions *action.Service
	checks  domain.CheckRepository
	logger  *slog.Logger

	mu            sync.RWMutex
	columnLineage map[string][]domain.ColumnLineage
}

// NewHandler creates the API handler. checks may be nil when the check
// store is not configured.
func NewHandler(diff *lineage.DiffService, actions *action.Service, checks domain.CheckRepository, logger *slog.Logger) *Handler {
	return &Handler{
		diff:    diff,
		actions: actions,
		checks:  checks,
		logger:  logger.With("component", "api"),
	}
}

// RouterConfig carries the middleware knobs for the HTTP router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Router assembles the chi router with the standard middleware chain.
func (h *Handler) Router(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
	}))
	if cfg.RateLimitRPS > 0 {
		r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		}))
	}

	r.Get("/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/snapshots", h.loadSnapshots)
		r.Get("/lineage", h.getLineage)
		r.Post("/lineage/select", h.selectNodes)
		r.Post("/projection", h.project)

		r.Route("/actions", func(r chi.Router) {
			r.Post("/row-count", h.startAction(h.actions.StartRowCount))
			r.Post("/row-count-diff", h.startAction(h.actions.StartRowCountDiff))
			r.Post("/value-diff", h.startAction(h.actions.StartValueDiff))
			r.Get("/{actionID}", h.actionState)
			r.Post("/{actionID}/cancel", h.cancelAction)
			r.Delete("/{actionID}", h.discardAction)
		})

		r.Route("/checks", func(r chi.Router) {
			r.Post("/", h.createCheck)
			r.Get("/", h.listChecks)
			r.Get("/{checkID}", h.getCheck)
			r.Patch("/{checkID}", h.renameCheck)
			r.Delete("/{checkID}", h.deleteCheck)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loadSnapshotsRequest struct {
	Base          *domain.Snapshot                  `json:"base"`
	Current       *domain.Snapshot                  `json:"current"`
	Diff          *domain.DiffResult                `json:"diff,omitempty"`
	ColumnLineage map[string][]domain.ColumnLineage `json:"column_lineage,omitempty"`
}

type graphSummary struct {
	Nodes       int      `json:"nodes"`
	Edges       int      `json:"edges"`
	ModifiedSet []string `json:"modified_set"`
	Impacted    int      `json:"impacted"`
}

func (h *Handler) loadSnapshots(w http.ResponseWriter, r *http.Request) {
	var req loadSnapshotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.ErrValidation("invalid request body: %v", err))
		return
	}
	if req.Base == nil || req.Current == nil {
		writeError(w, h.logger, domain.ErrValidation("both base and current snapshots are required"))
		return
	}

	graph := h.diff.Load(req.Base, req.Current, req.Diff)

	h.mu.Lock()
	h.columnLineage = req.ColumnLineage
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, graphSummary{
		Nodes:       len(graph.Nodes),
		Edges:       len(graph.Edges),
		ModifiedSet: graph.ModifiedSet,
		Impacted:    len(graph.ImpactedSet),
	})
}

func (h *Handler) getLineage(w http.ResponseWriter, _ *http.Request) {
	graph := h.diff.Graph()
	if graph == nil {
		writeError(w, h.logger, domain.ErrNotFound("no lineage graph loaded"))
		return
	}
	writeJSON(w, http.StatusOK, graph)
}

type selectRequest struct {
	NodeIDs   []string `json:"node_ids"`
	Direction string   `json:"direction"` // "upstream" or "downstream"
	Degree    int      `json:"degree,omitempty"`
}

func (h *Handler) selectNodes(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.ErrValidation("invalid request body: %v", err))
		return
	}

	var (
		selected map[string]struct{}
		err      error
	)
	switch req.Direction {
	case "upstream":
		selected, err = h.diff.SelectUpstream(req.NodeIDs, req.Degree)
	case "downstream":
		selected, err = h.diff.SelectDownstream(req.NodeIDs, req.Degree)
	default:
		err = domain.ErrValidation("direction must be \"upstream\" or \"downstream\"")
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	ids := make([]string, 0, len(selected))
	for id := range selected {
		ids = append(ids, id)
	}
	writeJSON(w, http.StatusOK, map[string]any{"node_ids": ids})
}

type projectRequest struct {
	NodeIDs               []string `json:"node_ids,omitempty"`
	ColumnLineage         bool     `json:"column_lineage"`
	BreakingChangeEnabled bool     `json:"breaking_change_enabled"`
}

func (h *Handler) project(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.ErrValidation("invalid request body: %v", err))
		return
	}

	graph := h.diff.Graph()
	if graph == nil {
		writeError(w, h.logger, domain.ErrNotFound("no lineage graph loaded"))
		return
	}

	opts := projection.Options{
		BreakingChangeEnabled: req.BreakingChangeEnabled,
	}
	if req.NodeIDs != nil {
		opts.NodeFilter = make(map[string]struct{}, len(req.NodeIDs))
		for _, id := range req.NodeIDs {
			opts.NodeFilter[id] = struct{}{}
		}
	}
	if req.ColumnLineage {
		h.mu.RLock()
		opts.ColumnLineage = h.columnLineage
		h.mu.RUnlock()
	}

	nodes, edges, nodeColumns := projection.Project(graph, opts)
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes":        nodes,
		"edges":        edges,
		"node_columns": nodeColumns,
	})
}

type actionRequest struct {
	NodeIDs []string `json:"node_ids"`
}

// startFunc is the shared shape of the action service's Start methods.
type startFunc func(ctx context.Context, graph *domain.LineageGraph, nodeIDs []string) (string, error)

// startAction decodes the node selection and launches a batch action.
// The background batch outlives the request, so it runs on a detached
// context rather than the request's.
func (h *Handler) startAction(start startFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req actionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, h.logger, domain.ErrValidation("invalid request body: %v", err))
			return
		}

		graph := h.diff.Graph()
		actionID, err := start(context.WithoutCancel(r.Context()), graph, req.NodeIDs)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"action_id": actionID})
	}
}

func (h *Handler) actionState(w http.ResponseWriter, r *http.Request) {
	state, err := h.actions.State(chi.URLParam(r, "actionID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) cancelAction(w http.ResponseWriter, r *http.Request) {
	if err := h.actions.Cancel(r.Context(), chi.URLParam(r, "actionID")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "canceling"})
}

func (h *Handler) discardAction(w http.ResponseWriter, r *http.Request) {
	if err := h.actions.Discard(chi.URLParam(r, "actionID")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createCheckRequest struct {
	Type        domain.CheckType   `json:"type"`
	Name        string             `json:"name,omitempty"`
	NodeIDs     []string           `json:"node_ids"`
	ViewOptions domain.ViewOptions `json:"view_options"`
}

func (h *Handler) createCheck(w http.ResponseWriter, r *http.Request) {
	var req createCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.ErrValidation("invalid request body: %v", err))
		return
	}

	var (
		check *domain.Check
		err   error
	)
	switch req.Type {
	case domain.CheckTypeLineageDiff:
		check, err = h.actions.AddLineageDiffCheck(r.Context(), req.Name, req.NodeIDs, req.ViewOptions)
	case domain.CheckTypeSchemaDiff:
		check, err = h.actions.AddSchemaDiffCheck(r.Context(), req.Name, req.NodeIDs, req.ViewOptions)
	default:
		err = domain.ErrValidation("unknown check type %q", req.Type)
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, check)
}

func (h *Handler) listChecks(w http.ResponseWriter, r *http.Request) {
	if h.checks == nil {
		writeError(w, h.logger, domain.ErrNotImplemented("check persistence is not configured"))
		return
	}
	checks, err := h.checks.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if checks == nil {
		checks = []*domain.Check{}
	}
	writeJSON(w, http.StatusOK, checks)
}

func (h *Handler) getCheck(w http.ResponseWriter, r *http.Request) {
	if h.checks == nil {
		writeError(w, h.logger, domain.ErrNotImplemented("check persistence is not configured"))
		return
	}
	check, err := h.checks.GetByID(r.Context(), chi.URLParam(r, "checkID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

type renameCheckRequest struct {
	Name string `json:"name"`
}

func (h *Handler) renameCheck(w http.ResponseWriter, r *http.Request) {
	if h.checks == nil {
		writeError(w, h.logger, domain.ErrNotImplemented("check persistence is not configured"))
		return
	}
	var req renameCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.ErrValidation("invalid request body: %v", err))
		return
	}
	check, err := h.checks.Rename(r.Context(), chi.URLParam(r, "checkID"), req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (h *Handler) deleteCheck(w http.ResponseWriter, r *http.Request) {
	if h.checks == nil {
		writeError(w, h.logger, domain.ErrNotImplemented("check persistence is not configured"))
		return
	}
	if err := h.checks.Delete(r.Context(), chi.URLParam(r, "checkID")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
