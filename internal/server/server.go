// Package server exposes the HTTP trigger surface of the sync pipeline.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"TrafficSync/internal/domain"
)

// SyncRunner executes one reconciliation run.
type SyncRunner interface {
	Run(ctx context.Context, daysBack int) domain.SyncResult
}

// Server handles scheduled and on-demand sync triggers.
type Server struct {
	runner          SyncRunner
	defaultDaysBack int
	logger          *slog.Logger
}

// New wires the pipeline runner behind the HTTP surface.
func New(runner SyncRunner, defaultDaysBack int, logger *slog.Logger) *Server {
	if defaultDaysBack <= 0 {
		defaultDaysBack = 7
	}
	return &Server{runner: runner, defaultDaysBack: defaultDaysBack, logger: logger}
}

// Routes builds the router. Completed runs always answer 200, including failed
// and timeout statuses; only malformed requests get a 4xx.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/sync", s.handleSync)
	r.Post("/sync", s.handleSync)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	daysBack := s.defaultDaysBack

	if raw := r.URL.Query().Get("days_back"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "days_back must be a positive integer",
			})
			return
		}
		daysBack = parsed
	}

	result := s.runner.Run(r.Context(), daysBack)

	if s.logger != nil {
		s.logger.Info("sync request served",
			"days_back", daysBack,
			"status", result.Status,
			"updated_records", result.UpdatedRecords)
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
