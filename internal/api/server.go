// Package api exposes the operational HTTP surface for a running crawl:
// health, a progress snapshot, and Prometheus metrics.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"siteharvest/internal/crawler"
)

// ProgressSource supplies point-in-time crawl counters.
type ProgressSource interface {
	Snapshot() crawler.Progress
}

// Server wires the ops routes.
type Server struct {
	router chi.Router
	source ProgressSource
	logger *zap.Logger
}

// NewServer builds the router.
func NewServer(source ProgressSource, logger *zap.Logger) *Server {
	s := &Server{source: source, logger: logger}
	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Get("/progress", s.progress)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) progress(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.source.Snapshot())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("write response", zap.Error(err))
	}
}
