package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/taskpilot/internal/config"
	"github.com/me/taskpilot/internal/scheduler"
	"github.com/me/taskpilot/internal/store"
)

// Server is the taskpilot REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	store     store.Store
	engine    *scheduler.Engine
}

// New creates a new Server with all routes registered.
// engine may be nil if no scheduling is desired (e.g. in store-only tests).
func New(cfg config.ServerConfig, st store.Store, engine *scheduler.Engine, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
		engine:    engine,
	}
	s.routes()
	return s
}

// StartEngine begins the scheduling cycle loop in a background goroutine.
func (s *Server) StartEngine(ctx context.Context) {
	if s.engine == nil {
		return
	}
	go func() {
		if err := s.engine.Start(ctx); err != nil && err != context.Canceled {
			s.logger.Error("engine stopped", "error", err)
		}
	}()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Engine operations
		r.Post("/priorities/recalculate", s.handleRecalculate)
		r.Post("/schedule/generate", s.handleGenerateSchedule)
		r.Get("/schedule/status", s.handleScheduleStatus)

		// Tasks
		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", s.handleCreateTask)
			r.Get("/", s.handleListTasks)
			r.Get("/optimized", s.handleOptimizedTasks)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTask)
				r.Patch("/status", s.handleUpdateTaskStatus)
				r.Get("/schedule", s.handleGetTaskSchedule)
				r.Post("/priority", s.handleAdjustPriority)
			})
		})

		// Projects
		r.Route("/projects", func(r chi.Router) {
			r.Post("/", s.handleCreateProject)
			r.Get("/", s.handleListProjects)
			r.Get("/{id}", s.handleGetProject)
		})

		// Workers
		r.Route("/workers", func(r chi.Router) {
			r.Post("/", s.handleCreateWorker)
			r.Get("/", s.handleListWorkers)
			r.Get("/{id}", s.handleGetWorker)
			r.Get("/{id}/schedule", s.handleGetWorkerSchedule)
		})

		// Audit log
		r.Get("/audit", s.handleListAudit)
	})
}
