// Package api exposes matching triggers and job status over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/blueoctober14/RightImpact/internal/match"
	"github.com/blueoctober14/RightImpact/internal/model"
	"github.com/blueoctober14/RightImpact/internal/monitoring"
	"github.com/blueoctober14/RightImpact/internal/queue"
)

// Matcher runs synchronous single-contact matching.
type Matcher interface {
	MatchContactToLists(ctx context.Context, sourceID int64, listID *int64) (*match.ContactResult, error)
}

// Reader is the read side of the store the API needs.
type Reader interface {
	GetSourceContact(ctx context.Context, id int64) (*model.SourceContact, error)
	GetTargetList(ctx context.Context, id int64) (*model.TargetList, error)
	GetMatchesForContact(ctx context.Context, sourceID int64) ([]model.MatchDetail, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, limit int) ([]model.Job, error)
}

// Submitter enqueues background jobs.
type Submitter interface {
	Submit(ctx context.Context, kind model.JobKind, params model.JobParams) (*model.Job, error)
}

// StatsCollector builds job health snapshots.
type StatsCollector interface {
	Collect(ctx context.Context, lookbackHours int) (*monitoring.Snapshot, error)
}

// Deps wires a Server. Stats and Gatherer are optional.
type Deps struct {
	Matcher     Matcher
	Store       Reader
	Jobs        Submitter
	Stats       StatsCollector
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
	Timeout     time.Duration
}

// Server serves the HTTP API.
type Server struct {
	deps Deps
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	if deps.Timeout <= 0 {
		deps.Timeout = 60 * time.Second
	}
	return &Server{deps: deps}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.deps.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.deps.Timeout))
		r.Post("/contacts/{id}/match", s.handleMatchContact)
		r.Get("/contacts/{id}/matches", s.handleContactMatches)
		r.Post("/match/new-contacts", s.handleMatchNewContacts)
		r.Post("/targets/{id}/match", s.handleMatchTargetList)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/stats", s.handleStats)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMatchContact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var listID *int64
	if raw := r.URL.Query().Get("list_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid list_id")
			return
		}
		listID = &v
	}

	res, err := s.deps.Matcher.MatchContactToLists(r.Context(), id, listID)
	if err != nil {
		zap.L().Error("api: match contact", zap.Int64("source_contact_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "matching failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleContactMatches(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	contact, err := s.deps.Store.GetSourceContact(ctx, id)
	if err != nil {
		s.internalError(w, "get source contact", err)
		return
	}
	if contact == nil {
		writeError(w, http.StatusNotFound, "source contact not found")
		return
	}

	matches, err := s.deps.Store.GetMatchesForContact(ctx, id)
	if err != nil {
		s.internalError(w, "get matches", err)
		return
	}
	if matches == nil {
		matches = []model.MatchDetail{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source_contact_id": id,
		"matched":           contact.Matched,
		"matches":           matches,
	})
}

func (s *Server) handleMatchNewContacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userIDs, err := int64List(q["user_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}
	listIDs, err := int64List(q["list_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid list_id")
		return
	}
	contactIDs, err := int64List(q["contact_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contact_id")
		return
	}

	s.submit(w, r, model.JobKindNewContacts, model.JobParams{
		SourceContactIDs: contactIDs,
		UserIDs:          userIDs,
		TargetListIDs:    listIDs,
	})
}

func (s *Server) handleMatchTargetList(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	list, err := s.deps.Store.GetTargetList(r.Context(), id)
	if err != nil {
		s.internalError(w, "get target list", err)
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, "target list not found")
		return
	}
	s.submit(w, r, model.JobKindTargetList, model.JobParams{TargetListID: id})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, kind model.JobKind, params model.JobParams) {
	job, err := s.deps.Jobs.Submit(r.Context(), kind, params)
	if errors.Is(err, queue.ErrQueueFull) {
		writeError(w, http.StatusServiceUnavailable, "job queue is full")
		return
	}
	if err != nil {
		s.internalError(w, "submit job", err)
		return
	}
	w.Header().Set("Location", "/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.internalError(w, "get job", err)
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = v
	}
	jobs, err := s.deps.Store.ListJobs(r.Context(), limit)
	if err != nil {
		s.internalError(w, "list jobs", err)
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stats == nil {
		writeError(w, http.StatusNotFound, "stats not enabled")
		return
	}
	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "invalid hours")
			return
		}
		hours = v
	}
	snap, err := s.deps.Stats.Collect(r.Context(), hours)
	if err != nil {
		s.internalError(w, "collect stats", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) internalError(w http.ResponseWriter, action string, err error) {
	zap.L().Error("api: "+action, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// int64List parses repeated and comma-separated query values.
func int64List(values []string) ([]int64, error) {
	var out []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
