// Package api is the HTTP admin surface for the shutdown scheduler.
//
// It mounts a chi router with a small middleware chain (panic recovery,
// request IDs, request logging, admin key authentication) in front of the
// operator commands, and serves responses gzip-compressed when the client
// asks for it.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"

	"autoshutdown/internal/commands"
	"autoshutdown/internal/scheduler"
)

// CommandService is the subset of commands.Service the API calls.
type CommandService interface {
	EnableTimer(ctx context.Context, enabled bool) (commands.Result, error)
	SetTimer(ctx context.Context, text string) (commands.Result, error)
	EnableDelay(ctx context.Context, enabled bool) (commands.Result, error)
	SetDelay(ctx context.Context, text string) (commands.Result, error)
	Status(ctx context.Context) (scheduler.Status, error)
}

// Server holds the router and its dependencies.
type Server struct {
	Commands  CommandService
	Logger    *slog.Logger
	Validator *Validator

	adminKeyHash []byte
	router       *chi.Mux
}

// NewServer builds a Server with routes mounted. adminKeyHash is a bcrypt
// hash of the operator API key.
func NewServer(svc CommandService, adminKeyHash string, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("command service must not be nil")
	}
	if adminKeyHash == "" {
		return nil, errors.New("admin key hash must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		Commands:     svc,
		Logger:       logger,
		Validator:    NewValidator(),
		adminKeyHash: []byte(adminKeyHash),
		router:       chi.NewRouter(),
	}
	s.mountRoutes()
	return s, nil
}

// Handler returns the root handler with response compression applied.
func (s *Server) Handler() http.Handler {
	return gzhttp.GzipHandler(s.router)
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// mountRoutes registers the middleware chain and every endpoint.
//
// Ordering:
//  1. Recoverer     - outermost, catches panics from everything below.
//  2. RequestID     - correlation ID for logs and error bodies.
//  3. RequestLogger - structured access log with redacted credentials.
//  4. Auth          - resolves the operator actor; /health is public.
func (s *Server) mountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(s.AuthMiddleware)

	s.router.Get("/health", s.handleHealth)
	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Put("/timer/enabled", s.handleEnableTimer)
		r.Put("/timer", s.handleSetTimer)
		r.Put("/delay/enabled", s.handleEnableDelay)
		r.Put("/delay", s.handleSetDelay)
	})
}
