// Package api provides a read-only HTTP view over stored runs. The core
// model has no network surface; this is strictly an observation layer.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/citysim/internal/persistence"
)

// Server serves stored sweep results over HTTP. All endpoints are GET.
type Server struct {
	DB   *persistence.DB
	Port int
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	// Trajectory reads can return thousands of rows, so they get a
	// per-client cap. The cheap endpoints are left open.
	limiter := NewRateLimiter(30, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/", RateLimitMiddleware(limiter, s.handleTrajectory))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.DB.CountRuns()
	if err != nil {
		http.Error(w, "status query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"name": "citysim",
		"runs": count,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 100, 1000)
	rows, err := s.DB.ListRuns(limit)
	if err != nil {
		slog.Error("runs query failed", "error", err)
		http.Error(w, "runs query failed", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []persistence.RunRow{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleTrajectory(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	limit := queryLimit(r, 500, 10000)
	rows, err := s.DB.LoadTrajectory(id, limit)
	if err != nil {
		slog.Error("trajectory query failed", "error", err, "run", id)
		http.Error(w, "trajectory query failed", http.StatusInternalServerError)
		return
	}
	if len(rows) == 0 {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, rows)
}

func queryLimit(r *http.Request, def, max int) int {
	limit := def
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= max {
			limit = n
		}
	}
	return limit
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json failed", "error", err)
	}
}
