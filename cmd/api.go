package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/export"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/pipeline"
	"github.com/sells-group/leads-cli/internal/store"
)

// pipelineFactory builds a pipeline for a discovery source name. An empty
// name selects the configured default.
type pipelineFactory func(source string) (*pipeline.Pipeline, error)

// apiServer serves the run API. Runs execute in the background under base
// and can be cancelled between leads.
type apiServer struct {
	store    store.Store
	pipeline pipelineFactory
	origins  []string
	base     context.Context

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

func newAPIServer(base context.Context, st store.Store, factory pipelineFactory, origins []string) *apiServer {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &apiServer{
		store:    st,
		pipeline: factory,
		origins:  origins,
		base:     base,
		active:   make(map[string]context.CancelFunc),
	}
}

// Routes returns the API router.
func (s *apiServer) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Route("/runs", func(r chi.Router) {
		r.Post("/", s.createRun)
		r.Get("/", s.listRuns)
		r.Get("/latest", s.latestRun)
		r.Get("/{id}", s.getRun)
		r.Delete("/{id}", s.cancelRun)
		r.Get("/{id}/export", s.exportRun)
	})
	return r
}

// Wait blocks until every background run has returned.
func (s *apiServer) Wait() {
	s.wg.Wait()
}

func (s *apiServer) health(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createRunRequest struct {
	Niche    string `json:"niche"`
	Location string `json:"location"`
	Limit    int    `json:"limit"`
	Source   string `json:"source"`
}

func (s *apiServer) createRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Niche) == "" || strings.TrimSpace(req.Location) == "" {
		respondError(w, http.StatusBadRequest, "niche and location are required")
		return
	}
	if req.Source == "cnpjlist" {
		respondError(w, http.StatusBadRequest, "the cnpjlist source is only available from the CLI")
		return
	}

	p, err := s.pipeline(req.Source)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	run, err := p.Create(r.Context(), model.Query{Niche: req.Niche, Location: req.Location, Limit: req.Limit, Source: req.Source})
	if err != nil {
		zap.L().Error("api: create run", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not create run")
		return
	}

	ctx, cancel := context.WithCancel(s.base)
	s.mu.Lock()
	s.active[run.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(run.ID)
		if _, err := p.Execute(ctx, run); err != nil {
			zap.L().Warn("api: run failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}()

	respond(w, http.StatusAccepted, map[string]string{
		"run_id": run.ID,
		"status": string(model.RunStatusRunning),
	})
}

func (s *apiServer) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.active[id]; ok {
		cancel()
		delete(s.active, id)
	}
}

// runSummary is the list view of a run.
type runSummary struct {
	ID        string          `json:"id"`
	Query     model.Query     `json:"query"`
	Status    model.RunStatus `json:"status"`
	Outcome   model.Outcome   `json:"outcome,omitempty"`
	Leads     int             `json:"leads"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func summarize(r model.Run) runSummary {
	sum := runSummary{
		ID:        r.ID,
		Query:     r.Query,
		Status:    r.Status,
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Result != nil {
		sum.Outcome = r.Result.Outcome
		sum.Leads = len(r.Result.Leads)
	}
	return sum
}

func (s *apiServer) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		Source: q.Get("source"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not list runs")
		return
	}
	out := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		out = append(out, summarize(run))
	}
	respond(w, http.StatusOK, out)
}

func (s *apiServer) latestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.LatestCompletedRun(r.Context())
	if s.storeError(w, err) {
		return
	}
	respond(w, http.StatusOK, run)
}

func (s *apiServer) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if s.storeError(w, err) {
		return
	}
	respond(w, http.StatusOK, run)
}

func (s *apiServer) cancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	cancel, ok := s.active[id]
	s.mu.Unlock()
	if ok {
		cancel()
		respond(w, http.StatusAccepted, map[string]string{"run_id": id, "status": "cancelling"})
		return
	}

	run, err := s.store.GetRun(r.Context(), id)
	if s.storeError(w, err) {
		return
	}
	respond(w, http.StatusConflict, map[string]string{
		"error":  "run is not active",
		"status": string(run.Status),
	})
}

func (s *apiServer) exportRun(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatCSV
	}
	if format != export.FormatCSV && format != export.FormatXLSX {
		respondError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}

	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if s.storeError(w, err) {
		return
	}
	if run.Result == nil {
		respondError(w, http.StatusConflict, "run has no results yet")
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, run.Result.Leads); err != nil {
		zap.L().Error("api: export run", zap.String("run_id", run.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not export run")
		return
	}
	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", `attachment; filename="leads-`+truncateID(run.ID)+"."+format+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// storeError writes the response for a failed store read and reports
// whether there was one.
func (s *apiServer) storeError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "run not found")
	default:
		zap.L().Error("api: store read", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "store error")
	}
	return true
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, map[string]string{"error": msg})
}
