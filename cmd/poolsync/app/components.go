package app

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/poolsync/internal/auth"
	"github.com/stacklok/poolsync/internal/command"
	"github.com/stacklok/poolsync/internal/config"
	"github.com/stacklok/poolsync/internal/docstore"
	"github.com/stacklok/poolsync/internal/httpclient"
	"github.com/stacklok/poolsync/internal/telemetry"
)

const (
	// upstreamTimeout bounds every call to the identity service, the document
	// store and the command endpoint
	upstreamTimeout = 30 * time.Second

	tracerName = "github.com/stacklok/poolsync"
)

// components are the remote-facing dependencies built from one configuration
type components struct {
	credentials *auth.Manager
	docs        docstore.Store
	dispatcher  command.Dispatcher
	metrics     *telemetry.SyncMetrics
	tracer      trace.Tracer
}

// buildComponents wires the clients described by cfg. tel may be nil for
// commands that run without telemetry.
func buildComponents(cfg *config.Config, tel *telemetry.Telemetry) (*components, error) {
	password, err := cfg.Identity.GetPassword()
	if err != nil {
		return nil, err
	}

	c := &components{}
	if tel != nil {
		c.tracer = tel.Tracer(tracerName)
		c.metrics, err = telemetry.NewSyncMetrics(tel.MeterProvider())
		if err != nil {
			return nil, fmt.Errorf("failed to create sync metrics: %w", err)
		}
	}

	httpClient := httpclient.NewDefaultClient(upstreamTimeout)
	syncCfg := cfg.GetSync()

	identity := auth.NewIdentityToolkitClient(httpClient,
		cfg.Identity.APIKey, cfg.Identity.GetSignInURL(), cfg.Identity.GetTokenURL(), nil)
	c.credentials = auth.NewManager(identity, cfg.Identity.Email, password,
		auth.WithLookahead(syncCfg.GetRefreshLookahead()),
		auth.WithRetryBackoff(syncCfg.GetBackoffInitial(), syncCfg.GetBackoffMax()),
		auth.WithMetrics(c.metrics),
	)

	c.docs = docstore.New(httpClient, cfg.Document.StoreURL, cfg.Document.ListenURL,
		docstore.WithTracer(c.tracer),
	)

	c.dispatcher = command.NewDispatcher(httpClient, cfg.Command.Endpoint,
		command.WithOperation(cfg.Command.GetOperation()),
		command.WithSource(cfg.Command.GetSource()),
		command.WithTracer(c.tracer),
		command.WithMetrics(c.metrics),
	)

	return c, nil
}

// listPools signs in and lists the pools linked to the account
func (c *components) listPools(ctx context.Context, collection string) ([]docstore.Pool, error) {
	defer c.credentials.Close()

	client, err := c.credentials.Authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}
	return docstore.ListPools(ctx, c.docs, client, collection)
}
