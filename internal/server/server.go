package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"plexmaint/internal/queue"
	"plexmaint/internal/store"
)

// Server is the admin HTTP API: rule management, scan and candidate
// review, deletion triggering, and integration settings.
type Server struct {
	store         *store.Store
	scheduler     *queue.Scheduler
	scanQueue     queue.JobQueue
	deletionQueue queue.JobQueue

	http *http.Server
}

func New(addr string, st *store.Store, sched *queue.Scheduler, scanQ, delQ queue.JobQueue) *Server {
	s := &Server{
		store:         st,
		scheduler:     sched,
		scanQueue:     scanQ,
		deletionQueue: delQ,
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)

	r.Route("/api/maintenance", func(r chi.Router) {
		r.Get("/fields", s.handleListFields)
		r.Post("/criteria/validate", s.handleValidateCriteria)

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)
			r.Get("/{id}", s.handleGetRule)
			r.Put("/{id}", s.handleUpdateRule)
			r.Delete("/{id}", s.handleDeleteRule)
			r.Post("/{id}/scan", s.handleTriggerScan)
			r.Get("/{id}/scans", s.handleListScans)
		})

		r.Get("/scans/{id}", s.handleGetScan)
		r.Get("/scans/{id}/candidates", s.handleListScanCandidates)

		r.Route("/candidates", func(r chi.Router) {
			r.Get("/", s.handleListCandidates)
			r.Get("/{id}", s.handleGetCandidate)
			r.Post("/review", s.handleReviewCandidates)
			r.Post("/delete", s.handleDeleteCandidates)
		})

		r.Get("/deletion-log", s.handleDeletionLog)
		r.Get("/schedulers", s.handleListSchedulers)
		r.Get("/jobs/{queue}/{id}/progress", s.handleJobProgress)
	})

	r.Route("/api/settings/integrations", func(r chi.Router) {
		r.Get("/{service}", s.handleGetIntegration)
		r.Put("/{service}", s.handleSetIntegration)
		r.Post("/{service}/test", s.handleTestIntegration)
	})

	return r
}

// Start runs the HTTP server until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
