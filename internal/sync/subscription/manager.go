// Package subscription keeps the push channel on the mirrored document open.
// At most one channel is live at any time: reopening always closes the
// previous one first.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/stacklok/poolsync/internal/auth"
	"github.com/stacklok/poolsync/internal/docstore"
	"github.com/stacklok/poolsync/internal/snapshot"
	"github.com/stacklok/poolsync/internal/status"
	"github.com/stacklok/poolsync/internal/store"
	"github.com/stacklok/poolsync/internal/telemetry"
)

// Reasons a channel is (re)opened
const (
	ReasonInitial           = "initial"
	ReasonCredentialRefresh = "credential-refreshed"
	ReasonHealthProbeFailed = "health-probe-failed"
	ReasonChannelClosed     = "channel-closed"
	ReasonCallbackPanic     = "callback-panic"
	ReasonManual            = "manual"
)

// Reasons a push payload is dropped
const (
	DropReasonParse     = "parse-error"
	DropReasonQueueFull = "queue-full"
	DropReasonStopped   = "writer-stopped"
	DropReasonStale     = "stale-channel"
)

// ErrNoDocument is returned when no document id is configured
var ErrNoDocument = errors.New("no document configured")

// Option configures a Manager
type Option func(*Manager)

// WithMetrics records deliveries, drops and resubscribes
func WithMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithStatus reports channel state to tracker
func WithStatus(tracker *status.Tracker) Option {
	return func(m *Manager) {
		m.status = tracker
	}
}

// DecodeFunc turns a push payload into a snapshot
type DecodeFunc func(payload []byte) (*snapshot.Snapshot, error)

// WithDecoder overrides docstore.DecodeDocument
func WithDecoder(decode DecodeFunc) Option {
	return func(m *Manager) {
		m.decode = decode
	}
}

// Manager owns the push channel. Open and Close are serialized; deliveries
// are decoded on the transport goroutine and handed to the writer.
type Manager struct {
	docs    docstore.Store
	clients auth.ClientSource
	ref     docstore.Ref
	state   *store.Store
	writer  *store.Writer
	metrics *telemetry.SyncMetrics
	status  *status.Tracker
	decode  DecodeFunc

	mu      sync.Mutex
	handle  docstore.Handle
	closing bool

	// handleClient is the client generation the live channel was opened with
	handleClient uint64

	// generation identifies the channel whose deliveries are applied
	generation atomic.Uint64

	// refreshed is the newest client generation announced by ScheduleRefresh
	refreshed atomic.Uint64

	// requests coalesces scheduled resubscribes; one pending request is enough
	requests chan string
}

// NewManager creates a Manager for the document ref
func NewManager(
	docs docstore.Store,
	clients auth.ClientSource,
	ref docstore.Ref,
	state *store.Store,
	writer *store.Writer,
	opts ...Option,
) *Manager {
	m := &Manager{
		docs:     docs,
		clients:  clients,
		ref:      ref,
		state:    state,
		writer:   writer,
		decode:   docstore.DecodeDocument,
		requests: make(chan string, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open closes the current channel, if any, and opens a new one with a
// freshly validated client
func (m *Manager) Open(ctx context.Context, reason string) error {
	if m.ref.ID == "" {
		return ErrNoDocument
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closing {
		return nil
	}
	m.closeLocked(reason)

	client, err := m.clients.ValidClient(ctx)
	if err != nil {
		m.metrics.RecordResubscribe(ctx, reason, false)
		return fmt.Errorf("failed to obtain a valid client: %w", err)
	}

	// advance before listening so the first delivery is not taken as stale
	generation := m.generation.Add(1)
	handle, err := m.docs.Listen(ctx, client, m.ref, func(payload []byte) {
		m.deliver(generation, payload)
	})
	if err != nil {
		m.metrics.RecordResubscribe(ctx, reason, false)
		return fmt.Errorf("failed to open push channel on %s: %w", m.ref, err)
	}

	m.handle = handle
	m.handleClient = client.Generation()
	m.metrics.RecordResubscribe(ctx, reason, true)
	m.status.RecordSubscribed(generation)
	go m.watch(handle, generation)

	slog.Info("Push channel opened",
		"document", m.ref.String(),
		"generation", generation,
		"reason", reason,
	)
	return nil
}

// Close tears down the current channel and refuses further Opens. It is
// idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closing = true
	m.closeLocked("shutdown")
}

// Schedule requests a resubscribe from Run without blocking. Requests made
// while one is already pending are merged into it.
func (m *Manager) Schedule(reason string) {
	select {
	case m.requests <- reason:
	default:
		slog.Debug("Resubscribe already scheduled", "reason", reason)
	}
}

// ScheduleRefresh requests a resubscribe with the refreshed client. The
// request is skipped when the live channel already uses that client or a
// newer one.
func (m *Manager) ScheduleRefresh(client *auth.Client) {
	generation := client.Generation()
	for {
		seen := m.refreshed.Load()
		if generation <= seen || m.refreshed.CompareAndSwap(seen, generation) {
			break
		}
	}
	m.Schedule(ReasonCredentialRefresh)
}

// Run serves scheduled resubscribes until ctx is cancelled. A failed
// resubscribe is logged; the health monitor or the next Schedule retries.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-m.requests:
			if reason == ReasonCredentialRefresh && m.usesRefreshedClient() {
				slog.Debug("Push channel already uses the refreshed credential", "document", m.ref.String())
				continue
			}
			if err := m.Open(ctx, reason); err != nil && ctx.Err() == nil {
				slog.Error("Resubscribe failed", "reason", reason, "error", err)
			}
		}
	}
}

// Generation returns the number of channels opened or attempted so far
func (m *Manager) Generation() uint64 {
	return m.generation.Load()
}

// Live reports whether a channel is currently held
func (m *Manager) Live() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle != nil
}

func (m *Manager) usesRefreshedClient() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle != nil && m.handleClient >= m.refreshed.Load()
}

func (m *Manager) closeLocked(reason string) {
	if m.handle == nil {
		return
	}
	if err := m.handle.Close(); err != nil {
		slog.Debug("Error closing push channel", "document", m.ref.String(), "error", err)
	}
	m.handle = nil
	m.status.RecordUnsubscribed(reason)
}

// watch schedules a resubscribe when the channel dies on its own
func (m *Manager) watch(handle docstore.Handle, generation uint64) {
	<-handle.Done()

	m.mu.Lock()
	current := m.handle == handle && !m.closing
	if current {
		m.handle = nil
		m.status.RecordUnsubscribed(ReasonChannelClosed)
	}
	m.mu.Unlock()

	if current {
		_ = handle.Close()
		slog.Warn("Push channel closed unexpectedly", "document", m.ref.String(), "generation", generation)
		m.Schedule(ReasonChannelClosed)
	}
}

// deliver runs on the transport goroutine. It never panics and never
// touches the store directly.
func (m *Manager) deliver(generation uint64, payload []byte) {
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Push delivery panicked", "document", m.ref.String(), "panic", r)
			m.Schedule(ReasonCallbackPanic)
		}
	}()

	if generation != m.Generation() {
		m.drop(ctx, DropReasonStale)
		return
	}

	snap, err := m.decode(payload)
	if err != nil {
		slog.Warn("Dropping malformed push payload", "document", m.ref.String(), "error", err)
		m.drop(ctx, DropReasonParse)
		return
	}

	err = m.writer.Enqueue(func() {
		m.state.Set(snap, store.SourcePush)
	})
	switch {
	case errors.Is(err, store.ErrQueueFull):
		slog.Warn("Writer queue full, dropping push update", "document", m.ref.String())
		m.drop(ctx, DropReasonQueueFull)
	case errors.Is(err, store.ErrWriterStopped):
		m.drop(ctx, DropReasonStopped)
	}
}

func (m *Manager) drop(ctx context.Context, reason string) {
	m.metrics.RecordDroppedUpdate(ctx, reason)
	m.status.RecordDropped()
}
