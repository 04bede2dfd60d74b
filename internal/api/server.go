package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/openinspect/kestrel/internal/domain"
	"github.com/openinspect/kestrel/internal/overrides"
	"github.com/openinspect/kestrel/internal/resolve"
	"github.com/openinspect/kestrel/internal/snapshot"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, planCache domain.Cache, bus domain.EventBus, store *snapshot.Store, resolver *resolve.Resolver, overrideSvc *overrides.Service, version string) *Server {
	handler := NewHandler(repo, planCache, bus, store, resolver, overrideSvc, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", TenantIDHeader, RequestIDHeader, TraceIDHeader, "Authorization"},
		ExposedHeaders:   []string{RequestIDHeader, TraceIDHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Admin console: finding listing and detail
		r.Get("/findings", handler.ListFindings)
		r.Get("/findings/{id}", handler.GetFinding)

		// Override lifecycle
		r.Post("/findings/{id}/override", handler.SaveOverrideDraft)
		r.Post("/findings/{id}/override/reset", handler.ResetOverride)
		r.Post("/findings/dimensions/publish", handler.PublishOverride)
		r.Post("/findings/dimensions/rollback", handler.RollbackOverride)

		// Resolution pipeline
		r.Post("/resolve", handler.Resolve)
		r.Get("/resolutions/{id}", handler.GetResolution)
		r.Post("/intake", handler.SubmitIntake)

		// Report selection and plan assembly
		r.Post("/selection/resolve", handler.ResolveSelection)
		r.Post("/plans/build", handler.BuildPlan)

		// Rule table administration
		r.Post("/config/reload", handler.ReloadConfig)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
