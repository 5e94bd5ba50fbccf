package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/kestrel-data/kestrel/internal/pipeline"
)

// StatusFunc returns the stats of the most recent run, or nil when no run
// has happened yet.
type StatusFunc func() *pipeline.RunStats

// TriggerFunc starts a run in the background and reports whether it was
// accepted. A run already in flight returns false.
type TriggerFunc func() (uuid.UUID, bool)

type Server struct {
	router  *chi.Mux
	port    int
	status  StatusFunc
	trigger TriggerFunc
}

func NewServer(port int, status StatusFunc, trigger TriggerFunc) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		port:    port,
		status:  status,
		trigger: trigger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/etl/status", s.lastRun)
	router.Post("/api/v1/etl/run", s.run)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) lastRun(w http.ResponseWriter, r *http.Request) {
	stats := s.status()
	if stats == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "idle"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	id, ok := s.trigger()
	if !ok {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "run already in flight"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id.String()})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
