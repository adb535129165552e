package run

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/weibo-seed/internal/graph"
	"github.com/zhouzirui/weibo-seed/internal/store"
	"github.com/zhouzirui/weibo-seed/pkg/utils"
)

// Handler serves the stored bootstrap runs.
type Handler struct {
	runs   store.Store
	logger *zap.Logger
}

// New 创建run处理器
func New(runs store.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		runs:   runs,
		logger: logger,
	}
}

// RegisterRoutes 注册run相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/runs", h.handleListRuns)
	r.Route("/runs/{runID}", func(r chi.Router) {
		r.Get("/", h.handleGetRun)
		r.Get("/personas", h.handleListPersonas)
		r.Get("/edges", h.handleListEdges)
	})
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.ListRuns(r.Context())
	if err != nil {
		h.logger.Error("list runs failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	utils.RespondJSON(w, http.StatusOK, runs)
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, run.RunInfo)
}

func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	personas := run.Personas
	if personas == nil {
		personas = []store.Persona{}
	}
	utils.RespondJSON(w, http.StatusOK, personas)
}

func (h *Handler) handleListEdges(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	edges := run.Edges
	if edges == nil {
		edges = []graph.Edge{}
	}
	utils.RespondJSON(w, http.StatusOK, edges)
}

// loadRun writes the error response itself when the run cannot be served.
func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (store.Run, bool) {
	runID := chi.URLParam(r, "runID")
	run, err := h.runs.GetRun(r.Context(), runID)
	switch {
	case errors.Is(err, store.ErrRunNotFound):
		utils.RespondError(w, http.StatusNotFound, "run not found")
		return store.Run{}, false
	case err != nil:
		h.logger.Error("load run failed", zap.String("runId", runID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load run")
		return store.Run{}, false
	}
	return run, true
}
