// Package dashboard serves the stored screening runs over a read-only HTTP API.
package dashboard

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/pmcc_screener/internal/export"
	"github.com/eddiefleurent/pmcc_screener/internal/models"
	"github.com/eddiefleurent/pmcc_screener/internal/storage"
)

const latestID = "latest"

type Server struct {
	router    *chi.Mux
	server    *http.Server
	storage   storage.Interface
	logger    *logrus.Logger
	port      int
	authToken string
	now       func() time.Time
}

type Config struct {
	Port      int
	AuthToken string
}

func NewServer(cfg Config, store storage.Interface, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		router:    chi.NewRouter(),
		storage:   store,
		logger:    logger,
		port:      cfg.Port,
		authToken: cfg.AuthToken,
		now:       time.Now,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(ZstdMiddleware)

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/health", s.handleHealth)
	s.router.Route("/api/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Get("/{id}", s.handleGetRun)
		r.Get("/{id}/combos.csv", s.handleCombosCSV)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting dashboard server on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// lookupRun resolves a run id, where "latest" names the newest run. It
// writes the error response and returns nil when the run cannot be served.
func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) *models.Run {
	id := chi.URLParam(r, "id")

	var (
		run *models.Run
		err error
	)
	if id == latestID {
		run, err = s.storage.LatestRun()
	} else {
		run, err = s.storage.GetRun(id)
	}
	switch {
	case errors.Is(err, storage.ErrRunNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
		return nil
	case err != nil:
		s.logger.WithError(err).WithField("run_id", id).Error("Failed to load run")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil
	}
	return run
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": s.now().Unix(),
		"runs":      len(s.storage.ListRuns()),
	}
	s.writeJSON(w, health)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.storage.ListRuns())
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if run := s.lookupRun(w, r); run != nil {
		s.writeJSON(w, run)
	}
}

func (s *Server) handleCombosCSV(w http.ResponseWriter, r *http.Request) {
	run := s.lookupRun(w, r)
	if run == nil {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "pmcc_"+run.ID+".csv"))
	if err := export.WriteCSV(w, run.Combos); err != nil {
		s.logger.WithError(err).WithField("run_id", run.ID).Error("Failed to write combos csv")
	}
}
