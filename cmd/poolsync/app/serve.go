package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/poolsync/internal/api"
	"github.com/stacklok/poolsync/internal/config"
	"github.com/stacklok/poolsync/internal/sync/coordinator"
	"github.com/stacklok/poolsync/internal/telemetry"
)

const (
	defaultGracefulTimeout = 30 * time.Second // bounds coordinator and HTTP shutdown
	serverRequestTimeout   = 25 * time.Second // a write waits for the command endpoint
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 30 * time.Second // must exceed serverRequestTimeout
	serverIdleTimeout      = 60 * time.Second
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Mirror the configured pool and serve it over HTTP",
		Long: `Start the synchronizer and the read-model HTTP server.

The configuration file (--config) specifies:
- the account used to sign in (the password comes from passwordFile or POOLSYNC_PASSWORD)
- the document store, push channel and command endpoints
- the mirrored document id and the sync timing
- telemetry settings`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	cmd.Flags().String("address", "", fmt.Sprintf("Address to listen on (default %q)", config.DefaultAddress))
	if err := v.BindPFlag("address", cmd.Flags().Lookup("address")); err != nil {
		slog.Error("Error binding address flag", "error", err)
	}
	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	c, err := buildComponents(cfg, tel)
	if err != nil {
		return err
	}

	sync := coordinator.New(c.credentials, c.docs, c.dispatcher, coordinator.ConfigFrom(cfg),
		coordinator.WithSyncMetrics(c.metrics),
		coordinator.WithTracer(c.tracer),
	)

	server, err := newHTTPServer(v, cfg, tel, sync)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if err := sync.Start(ctx); err != nil {
		shutdownServer(server)
		return fmt.Errorf("failed to start synchronizer: %w", err)
	}

	select {
	case <-ctx.Done():
		slog.Info("Shutting down")
	case err := <-serverErr:
		slog.Error("HTTP server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := sync.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to stop synchronizer", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	slog.Info("Shutdown complete")
	return nil
}

func newHTTPServer(v *viper.Viper, cfg *config.Config, tel *telemetry.Telemetry, sync *coordinator.Coordinator) (*http.Server, error) {
	address := v.GetString("address")
	if address == "" {
		address = cfg.GetAddress()
	}

	metricsMiddleware, err := telemetry.MetricsMiddleware(tel.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	opts := []api.ServerOption{
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(serverRequestTimeout),
			telemetry.TracingMiddleware(tel.TracerProvider()),
			metricsMiddleware,
			api.LoggingMiddleware,
		),
	}
	if handler := tel.MetricsHandler(); handler != nil {
		opts = append(opts, api.WithMetricsHandler(handler))
	}

	router, err := api.NewServer(sync, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create API server: %w", err)
	}

	return &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}, nil
}

func shutdownServer(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
}
