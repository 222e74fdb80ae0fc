package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stacklok/poolsync/internal/auth"
	"github.com/stacklok/poolsync/internal/docstore"
	"github.com/stacklok/poolsync/internal/sync/subscription"
)

// DefaultHealthInterval is how often the push channel is probed
const DefaultHealthInterval = 300 * time.Second

// Resubscriber reopens the push channel
//
//go:generate mockgen -destination=mocks/mock_resubscriber.go -package=mocks -source=health.go Resubscriber
type Resubscriber interface {
	// Open closes the current channel, if any, and opens a new one
	Open(ctx context.Context, reason string) error

	// Live reports whether a channel is currently held
	Live() bool
}

// HealthMonitor detects push channels that died without reporting it
type HealthMonitor struct {
	docs         docstore.Store
	clients      auth.ClientSource
	ref          docstore.Ref
	resubscriber Resubscriber
	interval     time.Duration
	loopOptions
}

// NewHealthMonitor creates a HealthMonitor probing ref every interval
func NewHealthMonitor(
	docs docstore.Store,
	clients auth.ClientSource,
	ref docstore.Ref,
	resubscriber Resubscriber,
	interval time.Duration,
	opts ...Option,
) *HealthMonitor {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	return &HealthMonitor{
		docs:         docs,
		clients:      clients,
		ref:          ref,
		resubscriber: resubscriber,
		interval:     interval,
		loopOptions:  newLoopOptions(opts),
	}
}

// Run probes until ctx is cancelled
func (h *HealthMonitor) Run(ctx context.Context) {
	slog.Info("Starting health monitor", "document", h.ref.String(), "interval", h.interval)
	runEvery(ctx, h.clock, h.interval, h.Check)
	slog.Info("Health monitor stopped", "document", h.ref.String())
}

// Check runs one probe. A failed probe reopens the push channel; a
// successful one reopens it only when no channel is held.
func (h *HealthMonitor) Check(ctx context.Context) {
	if h.ref.ID == "" {
		return
	}

	err := h.Probe(ctx)
	if ctx.Err() != nil {
		return
	}
	h.metrics.RecordHealthProbe(ctx, err == nil)
	h.status.RecordHealthProbe(err == nil)

	reason := subscription.ReasonHealthProbeFailed
	switch {
	case err != nil:
		slog.Warn("Health probe failed, refreshing push channel", "document", h.ref.String(), "error", err)
	case !h.resubscriber.Live():
		reason = subscription.ReasonChannelClosed
		slog.Info("No push channel held, reopening", "document", h.ref.String())
	default:
		return
	}

	if err := h.resubscriber.Open(ctx, reason); err != nil && ctx.Err() == nil {
		slog.Error("Failed to refresh push channel", "document", h.ref.String(), "error", err)
	}
}

// Probe issues one lightweight read of the document
func (h *HealthMonitor) Probe(ctx context.Context) error {
	client, err := h.clients.ValidClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain a valid client: %w", err)
	}
	if _, err := h.docs.Get(ctx, client, h.ref); err != nil {
		return fmt.Errorf("failed to probe %s: %w", h.ref, err)
	}
	return nil
}
