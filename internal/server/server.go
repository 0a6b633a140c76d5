package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/ppsched/internal/config"
	"github.com/me/ppsched/internal/scheduler"
	"github.com/me/ppsched/internal/session"
	"github.com/me/ppsched/internal/store"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Server is the ppsched status and control API.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	scheduler *scheduler.Scheduler
	sessions  *session.Manager
	store     store.Store // optional; nil disables /results
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithStore enables the stored results endpoints.
func WithStore(st store.Store) Option {
	return func(s *Server) {
		s.store = st
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, sched *scheduler.Scheduler, sessions *session.Manager, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		scheduler: sched,
		sessions:  sessions,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
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

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		// Scheduler state and control
		r.Get("/status", s.handleStatus)
		r.Get("/state", s.handleState)
		r.Post("/suspend", s.handleSuspend)
		r.Post("/resume", s.handleResume)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleOpenSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", s.handleCloseSession)
				r.Post("/jobs", s.handleSubmitJob)
				r.Get("/results", s.handleSessionResults)
			})
		})

		r.Get("/results", s.handleListResults)
		r.Get("/results/{jobID}", s.handleGetResult)
	})
}
