// Package api provides the REST API server of the pool read-model.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	v1 "github.com/stacklok/poolsync/internal/api/v1"
	"github.com/stacklok/poolsync/internal/projection"
	"github.com/stacklok/poolsync/internal/sync/coordinator"
)

var (
	_ v1.Synchronizer   = (*coordinator.Coordinator)(nil)
	_ projection.Source = (*coordinator.Coordinator)(nil)
)

// ServerOption configures the API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	metricsHandler http.Handler
	projections    []projection.Projection
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithMetricsHandler serves handler at /metrics
func WithMetricsHandler(handler http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = handler
	}
}

// WithProjections replaces the pool catalog served under /v1/controls
func WithProjections(projections []projection.Projection) ServerOption {
	return func(cfg *serverConfig) {
		cfg.projections = projections
	}
}

// NewServer creates and configures the HTTP router for the given synchronizer
func NewServer(svc v1.Synchronizer, opts ...ServerOption) (*chi.Mux, error) {
	cfg := &serverConfig{
		middlewares: []func(http.Handler) http.Handler{},
		projections: projection.Catalog(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	routes, err := v1.NewRoutes(svc, cfg.projections)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Mount("/", v1.HealthRouter(svc))
	r.Mount("/v1", routes.Router())
	if cfg.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metricsHandler)
	}

	return r, nil
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
