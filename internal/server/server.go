// Package server exposes the HTTP surface: the webhook endpoint the
// provider delivers call events to, plus health, metrics, and call
// monitoring endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kwhalen/voicedesk/internal/calllog"
	"github.com/kwhalen/voicedesk/internal/ivr"
	"github.com/kwhalen/voicedesk/internal/metrics"
	"github.com/kwhalen/voicedesk/internal/session"
	"github.com/kwhalen/voicedesk/internal/telephony"
)

const requestTimeout = 15 * time.Second

// EventHandler processes one normalized webhook event.
type EventHandler interface {
	Handle(ctx context.Context, ev telephony.Event)
}

// CallLogReader is the slice of the call log the ops endpoints need.
type CallLogReader interface {
	ListCalls(ctx context.Context, opts calllog.ListOptions) ([]*calllog.Record, error)
	GetStats(ctx context.Context, days int) (*calllog.Stats, error)
}

// Deps are the collaborators the HTTP layer exposes.
type Deps struct {
	Events   EventHandler
	Sessions *session.Store
	CallLog  CallLogReader
	Metrics  *metrics.Metrics
	Settings *ivr.Source
	Logger   *slog.Logger
}

type Server struct {
	Router *chi.Mux
	Port   int

	logger *slog.Logger
	deps   Deps
	http   *http.Server
}

// New builds the router with the middleware chain and routes mounted.
func New(port int, deps Deps) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(deps.Logger))
	r.Use(TimeoutMiddleware(requestTimeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "voicedesk")
	})

	s := &Server{
		Router: r,
		Port:   port,
		logger: deps.Logger,
		deps:   deps,
	}

	r.Get("/", s.handleHealth)
	r.Get("/health", s.handleHealth)
	r.Post("/webhooks/call", s.handleWebhook)
	r.Handle("/metrics", deps.Metrics.Handler())
	r.Get("/calls/active", s.handleActiveCalls)
	r.Get("/calls", s.handleListCalls)
	r.Get("/calls/stats", s.handleCallStats)
	r.Post("/admin/ivr/refresh", s.handleIVRRefresh)

	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
	return s
}

// Start serves until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
