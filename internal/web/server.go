// Package web exposes the integrity engine over HTTP.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Steff1414/Slojd-Admin-sub000/internal/config"
	"github.com/Steff1414/Slojd-Admin-sub000/internal/integrity"
	"github.com/Steff1414/Slojd-Admin-sub000/internal/web/middleware"
)

// IntegrityService is the part of integrity.Engine the API depends on.
type IntegrityService interface {
	ValidateImport(ctx context.Context, batch integrity.ImportBatch) (*integrity.ValidationResult, error)
	Scan(ctx context.Context) (*integrity.ScanResult, error)
	Search(ctx context.Context, query string) (*integrity.ScanResult, error)
}

// PingFunc checks a dependency for /healthz, e.g. (*pgxpool.Pool).Ping.
type PingFunc func(ctx context.Context) error

// Server is the HTTP server of the integrity API.
type Server struct {
	service IntegrityService
	cfg     *config.Config
	limiter *RunLimiter
	router  *chi.Mux
	server  *http.Server

	metrics http.Handler
	ping    PingFunc
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler mounts h at the configured metrics path.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithPing makes /healthz report the result of ping.
func WithPing(ping PingFunc) Option {
	return func(s *Server) { s.ping = ping }
}

// NewServer wires routes and middleware for service.
func NewServer(service IntegrityService, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		limiter: NewRunLimiter(cfg.Import.MaxConcurrentRuns, cfg.Import.MaxWaitTime),
		router:  chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	if s.cfg.Metrics.Enabled && s.metrics != nil {
		s.router.Handle(s.cfg.Metrics.Path, s.metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		r.Post("/import/validate", s.handleValidate)
		r.Get("/integrity/scan", s.handleScan)
		r.Get("/integrity/search", s.handleSearch)
	})
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, then waits for running validations to
// release their slots or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.limiter.WaitForDrain(ctx)
}

// Router returns the underlying router for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Limiter returns the validation run limiter.
func (s *Server) Limiter() *RunLimiter {
	return s.limiter
}

// securityHeaders sets headers suitable for a JSON-only API.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
