// Package store holds the last-known device snapshot and the single-writer
// task queue through which every mutation of it is serialized.
package store

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"github.com/stacklok/poolsync/internal/snapshot"
)

// Source identifies which channel produced a snapshot
type Source string

const (
	// SourceFetch is the initial full fetch performed at startup
	SourceFetch Source = "fetch"
	// SourcePush is a delivery from the push subscription
	SourcePush Source = "push"
	// SourcePoll is a drift correction from the reconciliation poller
	SourcePoll Source = "poll"
)

// Revision describes the snapshot currently held by the store
type Revision struct {
	// Number increases by one on every Set, starting at 1
	Number    uint64    `json:"number"`
	Source    Source    `json:"source"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Listener is notified synchronously on the writer goroutine after each Set
type Listener func(snap *snapshot.Snapshot, rev Revision)

type entry struct {
	snap *snapshot.Snapshot
	rev  Revision
}

// Store is the single source of truth readers consult. Get is lock-free and
// safe from any goroutine; Set must only run on the writer goroutine.
type Store struct {
	current atomic.Pointer[entry]
	clock   clock.PassiveClock

	mu        sync.Mutex
	listeners map[uint64]Listener
	nextID    uint64
}

// New creates an empty store
func New(clk clock.PassiveClock) *Store {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Store{
		clock:     clk,
		listeners: make(map[uint64]Listener),
	}
}

// Get returns the current snapshot, or nil when nothing has been loaded yet
func (s *Store) Get() *snapshot.Snapshot {
	if e := s.current.Load(); e != nil {
		return e.snap
	}
	return nil
}

// Revision returns the metadata of the current snapshot. The zero Revision
// means no snapshot has been loaded.
func (s *Store) Revision() Revision {
	if e := s.current.Load(); e != nil {
		return e.rev
	}
	return Revision{}
}

// Lookup returns the value at a dotted path in the current snapshot
func (s *Store) Lookup(path string) (any, bool) {
	return s.Get().Lookup(path)
}

// Set replaces the snapshot and notifies listeners. It must only be called
// from the writer goroutine (see Writer).
func (s *Store) Set(snap *snapshot.Snapshot, source Source) Revision {
	var number uint64 = 1
	if prev := s.current.Load(); prev != nil {
		number = prev.rev.Number + 1
	}
	rev := Revision{Number: number, Source: source, UpdatedAt: s.clock.Now()}
	s.current.Store(&entry{snap: snap, rev: rev})

	for _, l := range s.snapshotListeners() {
		notify(l, snap, rev)
	}
	return rev
}

// Subscribe registers a listener and returns a function that removes it
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) snapshotListeners() []Listener {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}

// notify shields the writer goroutine from a misbehaving listener
func notify(l Listener, snap *snapshot.Snapshot, rev Revision) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Snapshot listener panicked", "revision", rev.Number, "panic", r)
		}
	}()
	l(snap, rev)
}
