// Package server exposes checkpoints, pass history, metrics, the tenant and
// token registry and a manual sync trigger over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cleared-dev/ledgersync/internal/checkpoint"
	"github.com/cleared-dev/ledgersync/internal/metrics"
	"github.com/cleared-dev/ledgersync/internal/registry"
	"github.com/cleared-dev/ledgersync/internal/scheduler"
)

// Config holds server configuration. Runner should reject overlapping
// passes with scheduler.ErrPassRunning, as scheduler.Guard does. Registry
// may be nil, which disables the tenant and token routes.
type Config struct {
	Addr     string
	Log      zerolog.Logger
	Store    checkpoint.Store
	Runner   scheduler.PassRunner
	Source   scheduler.PassSource
	Registry registry.Store
	Metrics  *metrics.Recorder
	SyncLog  string
}

// Server is the HTTP status API.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	store   checkpoint.Store
	runner   scheduler.PassRunner
	source   scheduler.PassSource
	registry registry.Store
	metrics  *metrics.Recorder
	syncLog  string
}

// New creates a server. Routes are ready to serve through Handler before
// Start is called.
func New(cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "server").Logger(),
		store:    cfg.Store,
		runner:   cfg.Runner,
		source:   cfg.Source,
		registry: cfg.Registry,
		metrics:  cfg.Metrics,
		syncLog:  cfg.SyncLog,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/tenants", s.handleTenants)
		r.Route("/checkpoint/{tenant}", func(r chi.Router) {
			r.Get("/", s.handleCheckpointByToken)
			r.Get("/{account}", s.handleCheckpoint)
		})
		r.Get("/passes/{tenant}/{account}/last", s.handleLastPass)
		r.Post("/sync/{tenant}", s.handleSync)

		if s.registry != nil {
			r.Get("/tenant", s.handleListTenants)
			r.Post("/tenant/{tenant}", s.handleCreateTenant)
			r.Delete("/tenant/{tenant}", s.handleDeleteTenant)
			r.Get("/token/{tenant}", s.handleListTokens)
			r.Post("/token/{tenant}", s.handleCreateToken)
			r.Delete("/token/{tenant}/{id}", s.handleDeleteToken)
		}
	})
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
