// Package server hosts the Polar login flow over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/polarauth/pkg/health"
	"github.com/dmitrymomot/polarauth/pkg/oauth"
	"github.com/dmitrymomot/polarauth/pkg/session"
)

// Route paths.
const (
	LoginPath     = "/auth/polar"
	CallbackPath  = "/auth/polar/callback"
	LivenessPath  = "/health/live"
	ReadinessPath = "/health/ready"
)

// ShutdownHook runs after the HTTP server has stopped.
type ShutdownHook func(ctx context.Context) error

// Server is the HTTP host. Create it with New and start it with Run.
type Server struct {
	router          chi.Router
	http            *http.Server
	logger          *slog.Logger
	checks          health.Checks
	hooks           []ShutdownHook
	ready           chan struct{}
	listener        net.Listener
	shutdownTimeout time.Duration
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithShutdownTimeout bounds graceful shutdown. Default: 30 seconds.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithShutdownHook registers a hook run after the server stops, in order.
func WithShutdownHook(hook ShutdownHook) Option {
	return func(s *Server) {
		s.hooks = append(s.hooks, hook)
	}
}

// WithReadinessCheck adds a named readiness check.
func WithReadinessCheck(name string, check health.CheckFunc) Option {
	return func(s *Server) {
		s.checks[name] = check
	}
}

// New wires the routes:
//
//	GET  /auth/polar           redirect to Polar
//	GET  /auth/polar/callback  complete the flow
//	POST /auth/polar/callback  complete the flow (form_post)
//	GET  /health/live
//	GET  /health/ready
func New(addr string, flow *oauth.Flow, sessions *session.Manager, states *session.Store, opts ...Option) *Server {
	s := &Server{
		router:          chi.NewRouter(),
		logger:          slog.New(slog.DiscardHandler),
		checks:          health.Checks{},
		ready:           make(chan struct{}),
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(requestID, accessLog(s.logger), recoverer(s.logger))

	s.router.Get(LivenessPath, health.LivenessHandler())
	s.router.Get(ReadinessPath, health.ReadinessHandler(s.checks, health.WithLogger(s.logger)))

	auth := &authHandler{flow: flow, states: states, logger: s.logger}
	s.router.Group(func(r chi.Router) {
		r.Use(sessions.Middleware)
		r.Get(LoginPath, auth.login)
		r.Get(CallbackPath, auth.callback)
		r.Post(CallbackPath, auth.callback)
	})

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ServeHTTP serves a single request through the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Addr waits for Run to start listening and returns the bound address,
// or "" if Run could not listen.
func (s *Server) Addr() string {
	<-s.ready
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down gracefully and runs the shutdown hooks.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ln, err := net.Listen("tcp", s.http.Addr)
	if err == nil {
		s.listener = ln
	}
	close(s.ready)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer shutdownCancel()

	var errs []error
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	for _, hook := range s.hooks {
		if err := hook(shutdownCtx); err != nil {
			s.logger.Error("shutdown hook failed", slog.Any("error", err))
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	s.logger.Info("shutdown completed")
	return nil
}
