// Package api provides the HTTP API for observing the simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mirelet/veldt/internal/jobs"
	"github.com/mirelet/veldt/internal/sim"
	"github.com/mirelet/veldt/internal/store"
)

// Server serves simulation state over HTTP.
type Server struct {
	Scheduler *sim.Scheduler
	DB        *store.DB
	Jobs      *jobs.Queue
	Port      int
	AdminKey  string // Bearer token for POST endpoints. Empty = POST disabled.
}

// Handler builds the API route table.
func (s *Server) Handler() http.Handler {
	adminLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/worlds", s.handleWorlds)
	mux.HandleFunc("/api/v1/world/", s.handleWorldRoutes(adminLimiter))
	return mux
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	mux := s.Handler()
	addr := fmt.Sprintf(":%d", s.Port)
	go func() {
		slog.Info("api server listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("api server failed", "error", err)
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// authorized checks the bearer token for admin POST endpoints.
func (s *Server) authorized(r *http.Request) bool {
	if s.AdminKey == "" {
		return false
	}
	auth := r.Header.Get("Authorization")
	return strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	worlds := s.Scheduler.RegisteredWorlds()
	resp := map[string]any{
		"worlds":           worlds,
		"registered":       len(worlds),
		"jobs_pending":     s.Jobs.Len(),
		"jobs_dropped":     s.Jobs.Dropped(),
		"server_time_unix": time.Now().Unix(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWorlds(w http.ResponseWriter, r *http.Request) {
	ids, err := s.DB.WorldIDs()
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		entry := map[string]any{"id": id}
		if ctx := s.Scheduler.WorldContext(id); ctx != nil {
			entry["registered"] = true
			entry["world_time"] = ctx.WorldTime()
		} else {
			entry["registered"] = false
			if t, err := s.DB.WorldTime(id); err == nil {
				entry["world_time"] = t
			}
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleWorldRoutes dispatches /api/v1/world/{id}[/events|/pause|/resume|/timescale].
func (s *Server) handleWorldRoutes(adminLimiter *RateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/v1/world/")
		worldID, action, _ := strings.Cut(rest, "/")
		if worldID == "" {
			http.NotFound(w, r)
			return
		}

		switch action {
		case "":
			s.handleWorldDetail(w, r, worldID)
		case "events":
			s.handleWorldEvents(w, r, worldID)
		case "pause", "resume", "timescale":
			RateLimitMiddleware(adminLimiter, func(w http.ResponseWriter, r *http.Request) {
				s.handleWorldAdmin(w, r, worldID, action)
			})(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}

func (s *Server) handleWorldDetail(w http.ResponseWriter, r *http.Request, worldID string) {
	ctx := s.Scheduler.WorldContext(worldID)
	if ctx == nil {
		http.Error(w, "world not registered", http.StatusNotFound)
		return
	}
	cfg := ctx.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                 worldID,
		"world_time":         ctx.WorldTime(),
		"tick_count":         ctx.TickCount(),
		"paused":             cfg.PauseSimulation,
		"time_scale":         cfg.TimeScale,
		"avg_tick_ms":        ctx.AverageTickDurationMs(),
		"tier_counts":        ctx.TierCounts(),
		"jobs_pending_local": ctx.PendingJobs(),
		"max_npc_ticks":      cfg.MaxNPCTicksPerStep,
		"max_job_ops":        cfg.MaxJobOpsPerStep,
	})
}

func (s *Server) handleWorldEvents(w http.ResponseWriter, r *http.Request, worldID string) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	events, err := s.DB.RecentEvents(worldID, limit)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleWorldAdmin(w http.ResponseWriter, r *http.Request, worldID, action string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ctx := s.Scheduler.WorldContext(worldID)
	if ctx == nil {
		http.Error(w, "world not registered", http.StatusNotFound)
		return
	}

	switch action {
	case "pause":
		ctx.SetPaused(true)
	case "resume":
		ctx.SetPaused(false)
	case "timescale":
		var body struct {
			TimeScale float64 `json:"time_scale"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TimeScale <= 0 {
			http.Error(w, "time_scale must be a positive number", http.StatusBadRequest)
			return
		}
		ctx.SetTimeScale(body.TimeScale)
	}

	slog.Info("admin action", "world", worldID, "action", action)
	cfg := ctx.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"world":      worldID,
		"paused":     cfg.PauseSimulation,
		"time_scale": cfg.TimeScale,
	})
}
