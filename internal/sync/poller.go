package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stacklok/poolsync/internal/auth"
	"github.com/stacklok/poolsync/internal/docstore"
	"github.com/stacklok/poolsync/internal/snapshot"
	"github.com/stacklok/poolsync/internal/store"
)

// DefaultPollInterval bounds how stale the snapshot can get when the push
// channel silently stops delivering
const DefaultPollInterval = 60 * time.Second

// Poller reconciles the stored snapshot with the remote document
type Poller struct {
	docs     docstore.Store
	clients  auth.ClientSource
	ref      docstore.Ref
	state    *store.Store
	writer   *store.Writer
	interval time.Duration
	loopOptions
}

// NewPoller creates a Poller fetching ref every interval
func NewPoller(
	docs docstore.Store,
	clients auth.ClientSource,
	ref docstore.Ref,
	state *store.Store,
	writer *store.Writer,
	interval time.Duration,
	opts ...Option,
) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		docs:        docs,
		clients:     clients,
		ref:         ref,
		state:       state,
		writer:      writer,
		interval:    interval,
		loopOptions: newLoopOptions(opts),
	}
}

// Run polls until ctx is cancelled
func (p *Poller) Run(ctx context.Context) {
	slog.Info("Starting reconciliation poller", "document", p.ref.String(), "interval", p.interval)
	runEvery(ctx, p.clock, p.interval, func(ctx context.Context) {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Reconciliation poll failed", "document", p.ref.String(), "error", err)
		}
	})
	slog.Info("Reconciliation poller stopped", "document", p.ref.String())
}

// Poll fetches the document once and replaces the stored snapshot when it
// differs. It reports whether drift was found.
func (p *Poller) Poll(ctx context.Context) (bool, error) {
	if p.ref.ID == "" {
		slog.Debug("No document configured, skipping poll")
		return false, nil
	}

	start := p.clock.Now()
	fetched, err := p.fetch(ctx)
	if err != nil {
		p.metrics.RecordPoll(ctx, p.clock.Since(start), false)
		return false, err
	}

	var changed []string
	var loaded bool
	err = p.writer.Do(ctx, func() {
		current := p.state.Get()
		if current == nil {
			loaded = true
			p.state.Set(fetched, store.SourcePoll)
			return
		}
		if changed = p.detector.Diff(current, fetched); changed == nil {
			return
		}
		p.state.Set(fetched, store.SourcePoll)
	})
	if err != nil {
		p.metrics.RecordPoll(ctx, p.clock.Since(start), false)
		return false, fmt.Errorf("failed to apply polled snapshot: %w", err)
	}

	p.metrics.RecordPoll(ctx, p.clock.Since(start), true)
	drift := changed != nil
	if drift {
		slog.Warn("Snapshot drift detected, push channel missed an update",
			"document", p.ref.String(),
			"changed_keys", changed,
		)
		p.metrics.RecordDrift(ctx)
	} else if loaded {
		slog.Info("Snapshot loaded by poll", "document", p.ref.String())
	}
	p.status.RecordPoll(drift)
	return drift, nil
}

func (p *Poller) fetch(ctx context.Context) (*snapshot.Snapshot, error) {
	client, err := p.clients.ValidClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain a valid client: %w", err)
	}
	fetched, err := p.docs.Get(ctx, client, p.ref)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", p.ref, err)
	}
	return fetched, nil
}
