package api

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/classcycle/internal/analyzer"
	"github.com/ajitpratap0/classcycle/internal/models"
	"github.com/ajitpratap0/classcycle/internal/report"
	"github.com/ajitpratap0/classcycle/internal/scanner"
	"github.com/ajitpratap0/classcycle/internal/store"
	"github.com/ajitpratap0/classcycle/pkg/xmlutil"
)

const maxBodyBytes = 1 << 20

// Server is an HTTP API server that exposes dependency analysis.
type Server struct {
	scanOpts    scanner.Options
	analyzeOpts analyzer.Options
	store       store.Store // nil = run endpoints unavailable
	logger      *slog.Logger
	authToken   string // empty = no auth required
}

// NewServer creates a new Server with the given dependencies.
func NewServer(scanOpts scanner.Options, analyzeOpts analyzer.Options, st store.Store, logger *slog.Logger, authToken string) *Server {
	return &Server{
		scanOpts:    scanOpts,
		analyzeOpts: analyzeOpts,
		store:       st,
		logger:      logger,
		authToken:   authToken,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check, no auth required.
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("POST /v1/analyze", s.auth(s.handleAnalyze))
	mux.HandleFunc("POST /v1/escape", s.auth(s.handleEscape))
	mux.HandleFunc("GET /v1/runs", s.auth(s.handleListRuns))
	mux.HandleFunc("GET /v1/runs/{id}", s.auth(s.handleGetRun))
	mux.HandleFunc("GET /v1/runs/{id}/cycles", s.auth(s.handleRunCycles))

	return mux
}

// --- middleware ---

// auth wraps a handler with Bearer token authentication when authToken is set.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// --- handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// analyzeRequest is the body accepted by POST /v1/analyze.
type analyzeRequest struct {
	Paths      []string `json:"paths"`
	Format     string   `json:"format"`
	Title      string   `json:"title"`
	MergeInner *bool    `json:"merge_inner"`
	Save       bool     `json:"save"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Paths) == 0 {
		s.writeError(w, http.StatusBadRequest, "paths is required")
		return
	}
	if req.Format == "" {
		req.Format = string(report.FormatJSON)
	}
	format, err := report.ParseFormat(req.Format)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Save && s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "store is unavailable")
		return
	}

	scanOpts := s.scanOpts
	if req.MergeInner != nil {
		scanOpts.MergeInner = *req.MergeInner
	}
	sc, err := scanner.New(scanOpts, s.logger)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	analyzeOpts := s.analyzeOpts
	if req.Title != "" {
		analyzeOpts.Title = req.Title
	}

	a, err := analyzer.NewRunner(sc, analyzeOpts, s.logger).Run(r.Context(), req.Paths...)
	if err != nil {
		s.logger.Error("api: analysis failed", "paths", req.Paths, "error", err)
		s.writeError(w, http.StatusUnprocessableEntity, "analysis failed: "+err.Error())
		return
	}

	if req.Save {
		if err = s.store.SaveAnalysis(r.Context(), a); err != nil {
			s.logger.Error("api: failed to save analysis", "id", a.ID, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to save analysis")
			return
		}
	}

	var buf bytes.Buffer
	if err = report.Write(&buf, a, format); err != nil {
		s.logger.Error("api: failed to render report", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("X-Analysis-Id", a.ID)
	w.WriteHeader(http.StatusOK)
	if _, err = w.Write(buf.Bytes()); err != nil {
		s.logger.Error("api: failed to write report", "error", err)
	}
}

// escapeRequest is the body accepted by POST /v1/escape.
type escapeRequest struct {
	Text   *string `json:"text"`
	Quotes bool    `json:"quotes"`
}

// escapeResponse is returned by POST /v1/escape.
type escapeResponse struct {
	Escaped string `json:"escaped"`
}

func (s *Server) handleEscape(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req escapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// A missing or null text escapes to the empty string.
	var text string
	if req.Text != nil {
		text = *req.Text
	}
	s.writeJSON(w, http.StatusOK, escapeResponse{
		Escaped: xmlutil.EscapeWith(text, xmlutil.Options{Quotes: req.Quotes}),
	})
}

// runsResponse is returned by GET /v1/runs.
type runsResponse struct {
	Runs []models.RunSummary `json:"runs"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "store is unavailable")
		return
	}
	limit := store.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("api: failed to list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []models.RunSummary{}
	}
	s.writeJSON(w, http.StatusOK, runsResponse{Runs: runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "store is unavailable")
		return
	}
	id := r.PathValue("id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("api: failed to get run", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	s.writeJSON(w, http.StatusOK, run)
}

// cyclesResponse is returned by GET /v1/runs/{id}/cycles.
type cyclesResponse struct {
	Level  models.Level   `json:"level"`
	Cycles []models.Cycle `json:"cycles"`
}

func (s *Server) handleRunCycles(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "store is unavailable")
		return
	}
	id := r.PathValue("id")
	level := models.LevelClass
	if raw := r.URL.Query().Get("level"); raw != "" {
		level = models.Level(strings.ToLower(raw))
	}
	if !level.IsValid() {
		s.writeError(w, http.StatusBadRequest, "level must be class or package")
		return
	}

	cycles, err := s.store.Cycles(r.Context(), id, level)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("api: failed to get cycles", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get cycles")
		return
	}
	if cycles == nil {
		cycles = []models.Cycle{}
	}
	s.writeJSON(w, http.StatusOK, cyclesResponse{Level: level, Cycles: cycles})
}

// --- helpers ---

// writeJSON encodes v as JSON and writes it to w with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("api: failed to encode response", "error", encErr)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
// This is a convenience helper used by the serve command.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
