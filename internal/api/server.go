// Package api provides the HTTP dashboard over the run history.
// GET endpoints are public (read-only observation).
// POST /api/v1/runs requires a bearer token and starts a run in the background.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talgya/amm-arena/internal/analysis"
	"github.com/talgya/amm-arena/internal/engine"
	"github.com/talgya/amm-arena/internal/persistence"
)

// Server serves the run history over HTTP.
type Server struct {
	DB       *persistence.DB
	Runner   *engine.Runner
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	runLimiter *RateLimiter
	running    atomic.Bool
	wg         sync.WaitGroup
	baseCtx    context.Context
}

// NewServer creates a dashboard server. Runner may be nil, which disables
// run triggering.
func NewServer(db *persistence.DB, runner *engine.Runner, port int, adminKey string) *Server {
	return &Server{
		DB:         db,
		Runner:     runner,
		Port:       port,
		AdminKey:   adminKey,
		runLimiter: NewRateLimiter(10, time.Hour),
		baseCtx:    context.Background(),
	}
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/v1/runs", s.withDB(s.handleRuns))
	mux.HandleFunc("GET /api/v1/runs/{id}", s.withDB(s.handleRunDetail))
	mux.HandleFunc("GET /api/v1/metrics/{id}", s.withDB(s.handleMetrics))
	mux.HandleFunc("GET /api/v1/analysis/trends", s.withDB(s.handleTrends))
	mux.HandleFunc("GET /api/v1/analysis/arms-race/{id}", s.withDB(s.handleArmsRace))
	mux.HandleFunc("GET /api/v1/thinking/{actionID}", s.withDB(s.handleThinking))

	mux.HandleFunc("POST /api/v1/runs", s.adminOnly(RateLimitMiddleware(s.runLimiter, s.handleStartRun)))

	return corsMiddleware(mux)
}

// Serve listens on Port until ctx is cancelled, then shuts down and waits
// for any triggered run to wind down.
func (s *Server) Serve(ctx context.Context) error {
	s.baseCtx = ctx

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("HTTP API starting", "addr", srv.Addr, "admin_auth", s.AdminKey != "")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Wait()
	slog.Info("HTTP API stopped")
	return err
}

// Wait blocks until a triggered run, if any, has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no ARENA_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) withDB(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.DB == nil {
			http.Error(w, "database not available", http.StatusServiceUnavailable)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"name":        "AMM Arena API",
		"description": "Multi-agent LLM simulation around a constant-product liquidity pool",
		"links": map[string]string{
			"health": "/health",
			"runs":   "/api/v1/runs",
			"trends": "/api/v1/analysis/trends",
		},
		"usage": map[string]string{
			"start_run": `POST /api/v1/runs with {"num_agents": 5, "turns_per_run": 10}`,
			"list_runs": "GET /api/v1/runs",
			"view_run":  "GET /api/v1/runs/{id}",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	database := "disconnected"
	if s.DB != nil && s.DB.Ping(r.Context()) == nil {
		database = "connected"
	}
	writeJSON(w, map[string]any{
		"status":      "healthy",
		"database":    database,
		"run_running": s.running.Load(),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.DB.ListRuns(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []persistence.Run{}
	}
	writeJSON(w, map[string]any{"runs": runs})
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	detail, err := s.DB.RunDetail(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, detail)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	m, err := s.DB.GetMetrics(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, m)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.DB.CompletedRunMetrics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, analysis.DetectTrends(metrics))
}

func (s *Server) handleArmsRace(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := s.DB.GetRun(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	samples, err := s.DB.ActionSamples(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, analysis.DetectArmsRaces(samples))
}

func (s *Server) handleThinking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "actionID")
	if !ok {
		return
	}
	a, err := s.DB.ActionByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"action_id":   a.ID,
		"run_id":      a.RunID,
		"turn":        a.Turn,
		"agent_name":  a.AgentName,
		"action_type": a.ActionType,
		"reasoning":   a.ReasoningTrace,
		"thinking":    a.ThinkingTrace,
	})
}

// handleStartRun validates the request synchronously and then runs in the
// background; the run's progress is visible through the read endpoints.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	if s.Runner == nil {
		http.Error(w, "runner not available", http.StatusServiceUnavailable)
		return
	}

	p := s.Runner.Params
	var req struct {
		NumAgents   *int   `json:"num_agents"`
		TurnsPerRun *int   `json:"turns_per_run"`
		Seed        *int64 `json:"seed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.NumAgents != nil {
		p.NumAgents = *req.NumAgents
	}
	if req.TurnsPerRun != nil {
		p.TurnsPerRun = *req.TurnsPerRun
	}
	p.Seed = 0
	if req.Seed != nil {
		p.Seed = *req.Seed
	}
	if err := p.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !s.running.CompareAndSwap(false, true) {
		http.Error(w, engine.ErrRunInProgress.Error(), http.StatusConflict)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)

		res, err := s.Runner.RunWith(s.baseCtx, p)
		if err != nil {
			slog.Warn("triggered run failed", "error", err)
			return
		}
		slog.Info("triggered run finished", "run", res.RunNumber, "run_id", res.RunID, "status", res.Status)
	}()

	writeJSONStatus(w, http.StatusAccepted, map[string]any{
		"status":        "started",
		"num_agents":    p.NumAgents,
		"turns_per_run": p.TurnsPerRun,
	})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, persistence.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	slog.Error("request failed", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
