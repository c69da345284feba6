// Package httpapi is HomeSoil's ambient HTTP surface: a chi mux exposing
// /healthz and /metrics, with room for the Supervisor to mount the
// dashboard bus's Socket.IO handler alongside them.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neriamosgionata/homesoil/internal/health"
)

// Server wraps a chi router carrying the ambient endpoints plus whatever
// the Supervisor mounts on top (the dashboard bus's /socket.io/ handler).
type Server struct {
	router  chi.Router
	checker *health.Checker
}

// NewServer builds the base router: request-id/recoverer middleware,
// /healthz backed by checker, and /metrics via promhttp.
func NewServer(checker *health.Checker) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	s := &Server{router: r, checker: checker}

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	return s
}

// Mount attaches an additional handler (the dashboard bus's Socket.IO
// engine) at pattern, e.g. "/socket.io/*".
func (s *Server) Mount(pattern string, h http.Handler) {
	s.router.Handle(pattern, h)
}

// Handler returns the composed http.Handler for the Supervisor's
// http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	statuses := s.checker.Statuses()
	status := http.StatusOK
	if !s.checker.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"checks": statuses})
}
