// Package api serves values documents and deployments over HTTP.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lolmeida/kstack/internal/deploy"
	"github.com/lolmeida/kstack/internal/metrics"
	"github.com/lolmeida/kstack/internal/model"
)

// Backend is the service the handlers call.
type Backend interface {
	Environments(ctx context.Context) ([]model.Environment, error)
	Values(ctx context.Context, environmentID int64, stackName string) (model.Document, error)
	Deploy(ctx context.Context, environmentID int64, stackName string) deploy.Result
	ClearCache(ctx context.Context)
	InvalidateCategory(ctx context.Context, category string)
}

// Server handles HTTP requests for values, deploys and health checks.
type Server struct {
	backend  Backend
	metrics  *metrics.Metrics
	log      *zap.Logger
	apiToken string
	handler  http.Handler

	mu     sync.Mutex
	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics enables /metrics and request metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithAPIToken requires X-API-Key on /api routes.
func WithAPIToken(token string) Option {
	return func(s *Server) {
		s.apiToken = token
	}
}

// NewServer creates a server over b.
func NewServer(b Backend, opts ...Option) *Server {
	s := &Server{backend: b, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.routes()
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(bodySizeLimitMiddleware)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMiddleware(s.apiToken))

		r.Get("/environments", s.handleEnvironments)
		r.Route("/environments/{envID}/stacks/{stack}", func(r chi.Router) {
			r.Get("/values", s.handleValues)
			r.Post("/deploy", s.handleDeploy)
		})

		r.Post("/cache/clear", s.handleClearCache)
		r.Delete("/cache/categories/{category}", s.handleInvalidateCategory)
	})

	return r
}

// Start listens on addr and serves until Shutdown.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener. It returns nil after Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	// Deploys block for the helm wait budget, so writes get a generous
	// timeout.
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      15 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.log.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
