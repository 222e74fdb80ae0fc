package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/stacklok/poolsync/internal/auth"
	"github.com/stacklok/poolsync/internal/command"
	"github.com/stacklok/poolsync/internal/docstore"
	"github.com/stacklok/poolsync/internal/optimistic"
	"github.com/stacklok/poolsync/internal/otel"
	"github.com/stacklok/poolsync/internal/snapshot"
	"github.com/stacklok/poolsync/internal/status"
	"github.com/stacklok/poolsync/internal/store"
	pkgsync "github.com/stacklok/poolsync/internal/sync"
	"github.com/stacklok/poolsync/internal/sync/subscription"
	"github.com/stacklok/poolsync/internal/telemetry"
)

var (
	// ErrNotStarted is returned by operations that need a running coordinator
	ErrNotStarted = errors.New("coordinator is not started")

	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("coordinator is already started")
)

// Coordinator mirrors one remote document
type Coordinator struct {
	cfg         Config
	credentials *auth.Manager
	docs        docstore.Store
	dispatcher  command.Dispatcher

	state        *store.Store
	writer       *store.Writer
	subscription *subscription.Manager
	poller       *pkgsync.Poller
	health       *pkgsync.HealthMonitor
	gates        *optimistic.Registry
	tracker      *status.Tracker

	clock   clock.WithTicker
	metrics *telemetry.SyncMetrics
	tracer  trace.Tracer

	mu          gosync.Mutex
	started     bool
	stopped     bool
	stopLoops   context.CancelFunc
	stopWriter  context.CancelFunc
	loops       *errgroup.Group
	unsubscribe func()
}

// Option is a function that configures the coordinator
type Option func(*Coordinator)

// WithClock sets the clock shared by the loops, the store and the gates
func WithClock(clk clock.WithTicker) Option {
	return func(c *Coordinator) {
		c.clock = clk
	}
}

// WithSyncMetrics sets the sync metrics for the coordinator and its parts
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(c *Coordinator) {
		c.metrics = metrics
	}
}

// WithTracer sets the tracer used around startup and commands
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = tracer
	}
}

// New creates a coordinator with injected dependencies. Nothing touches the
// network before Start.
func New(
	credentials *auth.Manager,
	docs docstore.Store,
	dispatcher command.Dispatcher,
	cfg Config,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		cfg:         cfg.withDefaults(),
		credentials: credentials,
		docs:        docs,
		dispatcher:  dispatcher,
		clock:       clock.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.tracker = status.NewTracker(c.cfg.Document.ID, c.clock)
	c.state = store.New(c.clock)
	c.gates = optimistic.NewRegistry(
		optimistic.WithTimeout(c.cfg.CommandTimeout),
		optimistic.WithClock(c.clock),
	)
	c.wire()
	credentials.OnRefresh(c.onCredentialRefresh)

	return c
}

// wire builds the writer and the components fed by it. A writer runs once,
// so a failed Start wires a fresh set for the next attempt.
func (c *Coordinator) wire() {
	ref := c.cfg.Document
	c.writer = store.NewWriter(c.cfg.QueueSize)
	c.subscription = subscription.NewManager(c.docs, c.credentials, ref, c.state, c.writer,
		subscription.WithMetrics(c.metrics),
		subscription.WithStatus(c.tracker),
	)

	loopOpts := []pkgsync.Option{
		pkgsync.WithClock(c.clock),
		pkgsync.WithMetrics(c.metrics),
		pkgsync.WithStatus(c.tracker),
	}
	c.poller = pkgsync.NewPoller(c.docs, c.credentials, ref, c.state, c.writer, c.cfg.PollInterval, loopOpts...)
	c.health = pkgsync.NewHealthMonitor(c.docs, c.credentials, ref, c.subscription, c.cfg.HealthInterval, loopOpts...)
}

// Start signs in, loads the document and opens the push channel, then runs
// the background goroutines until Shutdown. It returns once the first
// snapshot is loaded. A failed Start may be retried.
func (c *Coordinator) Start(ctx context.Context) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	ctx, span := otel.StartSpan(ctx, c.tracer, "coordinator.start")
	defer span.End()

	ref := c.cfg.Document
	slog.Info("Starting synchronizer",
		"document", ref.String(),
		"poll_interval", c.cfg.PollInterval,
		"health_interval", c.cfg.HealthInterval,
	)

	c.tracker.SetPhase(status.SyncPhaseStarting, "")
	c.unsubscribe = c.state.Subscribe(c.recordUpdate)
	defer func() {
		if err != nil {
			c.unsubscribe()
			c.unsubscribe = nil
			c.started = false
		}
	}()

	client, err := c.credentials.Authenticate(ctx)
	if err != nil {
		otel.RecordError(span, err)
		c.tracker.SetPhase(status.SyncPhaseFailed, err.Error())
		return fmt.Errorf("failed to sign in: %w", err)
	}
	c.tracker.RecordCredential(client.Expiry())

	writerCtx, stopWriter := context.WithCancel(context.WithoutCancel(ctx))
	c.stopWriter = stopWriter
	go c.writer.Run(writerCtx)

	if ref.ID != "" {
		if err := c.initialLoad(ctx, client); err != nil {
			otel.RecordError(span, err)
			c.tracker.SetPhase(status.SyncPhaseFailed, err.Error())
			c.stopWriterLocked()
			c.credentials.Close()
			c.wire()
			return err
		}
		if err := c.subscription.Open(ctx, subscription.ReasonInitial); err != nil {
			slog.Warn("Push channel unavailable, relying on polling until it recovers",
				"document", ref.String(),
				"error", err,
			)
			c.tracker.SetPhase(status.SyncPhaseDegraded, err.Error())
		}
	} else {
		slog.Warn("No document configured, only the credential is kept fresh")
	}

	loopCtx, stopLoops := context.WithCancel(context.WithoutCancel(ctx))
	c.stopLoops = stopLoops
	c.loops = &errgroup.Group{}
	c.goLoop(loopCtx, c.subscription.Run)
	c.goLoop(loopCtx, c.poller.Run)
	c.goLoop(loopCtx, c.health.Run)
	c.goLoop(loopCtx, c.credentials.RunRefreshLoop)

	slog.Info("Synchronizer started", "document", ref.String())
	return nil
}

// Shutdown stops the loops, closes the push channel, stops the writer and
// drops the credential, in that order. It is idempotent.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started || c.stopped {
		return nil
	}
	c.stopped = true
	slog.Info("Stopping synchronizer", "document", c.cfg.Document.String())

	var waitErr error
	if c.stopLoops != nil {
		c.stopLoops()
		waitErr = waitFor(ctx, c.loops.Wait)
	}

	c.subscription.Close()
	c.stopWriterLocked()
	c.credentials.Close()

	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.tracker.SetPhase(status.SyncPhaseStopped, "shutdown")

	if waitErr != nil {
		return fmt.Errorf("background loops did not stop: %w", waitErr)
	}
	slog.Info("Synchronizer stopped")
	return nil
}

// Get returns the value at a dotted path of the current snapshot
func (c *Coordinator) Get(path string) (any, bool) {
	return c.state.Lookup(path)
}

// Snapshot returns the current snapshot, or nil before the first load
func (c *Coordinator) Snapshot() *snapshot.Snapshot {
	return c.state.Get()
}

// Revision describes the current snapshot
func (c *Coordinator) Revision() store.Revision {
	return c.state.Revision()
}

// Ready reports whether a snapshot has been loaded
func (c *Coordinator) Ready() bool {
	return c.state.Get() != nil
}

// Subscribe registers a listener notified after every snapshot replacement.
// The returned function removes it.
func (c *Coordinator) Subscribe(listener store.Listener) func() {
	return c.state.Subscribe(listener)
}

// Refresh runs one reconciliation poll immediately and reports whether the
// snapshot had drifted
func (c *Coordinator) Refresh(ctx context.Context) (bool, error) {
	if !c.running() {
		return false, ErrNotStarted
	}
	return c.poller.Poll(ctx)
}

// Resubscribe reopens the push channel
func (c *Coordinator) Resubscribe(ctx context.Context) error {
	if !c.running() {
		return ErrNotStarted
	}
	return c.subscription.Open(ctx, subscription.ReasonManual)
}

// Status returns a copy of the synchronizer status
func (c *Coordinator) Status() status.SyncStatus {
	return c.tracker.Status()
}

// DocumentID returns the mirrored document id
func (c *Coordinator) DocumentID() string {
	return c.cfg.Document.ID
}

func (c *Coordinator) running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started && !c.stopped
}

func (c *Coordinator) initialLoad(ctx context.Context, client *auth.Client) error {
	snap, err := c.docs.Get(ctx, client, c.cfg.Document)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", c.cfg.Document, err)
	}
	if err := c.writer.Do(ctx, func() {
		c.state.Set(snap, store.SourceFetch)
	}); err != nil {
		return fmt.Errorf("failed to store initial snapshot: %w", err)
	}
	slog.Info("Initial snapshot loaded", "document", c.cfg.Document.String())
	return nil
}

// recordUpdate runs on the writer goroutine after every Set
func (c *Coordinator) recordUpdate(_ *snapshot.Snapshot, rev store.Revision) {
	c.tracker.RecordUpdate(string(rev.Source), rev.Number, rev.UpdatedAt)
	c.metrics.RecordSnapshotUpdate(context.Background(), string(rev.Source))
}

// onCredentialRefresh may run while the subscription holds its lock, so it
// only schedules the reopen
func (c *Coordinator) onCredentialRefresh(_ context.Context, client *auth.Client) {
	c.tracker.RecordCredential(client.Expiry())
	if c.cfg.Document.ID != "" {
		c.subscription.ScheduleRefresh(client)
	}
}

func (c *Coordinator) goLoop(ctx context.Context, run func(context.Context)) {
	c.loops.Go(func() error {
		run(ctx)
		return nil
	})
}

func (c *Coordinator) stopWriterLocked() {
	if c.stopWriter == nil {
		return
	}
	c.stopWriter()
	<-c.writer.Done()
	c.stopWriter = nil
}

// waitFor runs wait and gives up when ctx is done first
func waitFor(ctx context.Context, wait func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- wait()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
