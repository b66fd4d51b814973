// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the inbound trigger, run status, health and metrics endpoints.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/vidlens/internal/api/middleware"
	"github.com/ManuGH/vidlens/internal/log"
	"github.com/ManuGH/vidlens/internal/orchestrator"
	"github.com/ManuGH/vidlens/internal/runstore"
)

// maxTriggerBody bounds the trigger payload.
const maxTriggerBody = 64 << 10

// Submitter schedules analysis runs.
type Submitter interface {
	Submit(ctx context.Context, req orchestrator.Request) (orchestrator.Ack, error)
}

// RunReader looks up recorded runs.
type RunReader interface {
	Get(ctx context.Context, id string) (runstore.Run, error)
}

// HealthCheck reports a dependency as unhealthy by returning an error.
type HealthCheck func(ctx context.Context) error

// Config holds the server's admission settings.
type Config struct {
	VerifyToken string
	// RateLimit is trigger requests per minute per client IP; 0 disables it.
	RateLimit int
	// ServiceName enables otelhttp server spans when set.
	ServiceName string
}

// Option customises a Server.
type Option func(*Server)

// WithRuns enables GET /v1/runs/{id}.
func WithRuns(runs RunReader) Option {
	return func(s *Server) { s.runs = runs }
}

// WithHealthCheck adds a named dependency check to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

// Server owns the HTTP routes.
type Server struct {
	cfg       Config
	submitter Submitter
	runs      RunReader
	checks    map[string]HealthCheck
	logger    zerolog.Logger
	router    chi.Router
}

// New builds the server and its router.
func New(cfg Config, submitter Submitter, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		submitter: submitter,
		checks:    make(map[string]HealthCheck),
		logger:    log.WithComponent("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: s.cfg.ServiceName,
		EnableLogging:  true,
	})

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.With(middleware.TriggerRateLimit(s.cfg.RateLimit)).
		Post("/video/analyze", s.handleAnalyze)

	if s.runs != nil {
		r.Get("/v1/runs/{id}", s.handleGetRun)
	}
	return r
}
