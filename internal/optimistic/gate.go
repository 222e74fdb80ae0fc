// Package optimistic holds the locally-issued target value of a writable
// field until the mirrored document confirms it or a timeout passes.
package optimistic

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/stacklok/poolsync/internal/snapshot"
)

// DefaultTimeout is how long an unconfirmed target value is displayed
const DefaultTimeout = 20 * time.Second

// State is the position of a gate in its state machine
type State string

const (
	// StateIdle displays the observed value
	StateIdle State = "idle"
	// StatePending displays the issued target value
	StatePending State = "pending"
)

// Outcome is how a pending command left the Pending state
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeFailed    Outcome = "failed"
)

// PendingCommand is a write whose effect has not been observed yet
type PendingCommand struct {
	Target   any       `json:"target"`
	IssuedAt time.Time `json:"issuedAt"`
}

// DispatchFunc sends the write to the remote system
type DispatchFunc func(ctx context.Context) error

// Option configures a Gate
type Option func(*Gate)

// WithTimeout overrides DefaultTimeout
func WithTimeout(timeout time.Duration) Option {
	return func(g *Gate) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

// WithClock sets the clock used to age pending commands
func WithClock(clk clock.PassiveClock) Option {
	return func(g *Gate) {
		g.clock = clk
	}
}

// Gate is the optimistic state of one writable field. It is safe for
// concurrent use.
type Gate struct {
	name    string
	timeout time.Duration
	clock   clock.PassiveClock

	mu      sync.Mutex
	pending *PendingCommand
}

// NewGate creates an idle gate; name only appears in logs
func NewGate(name string, opts ...Option) *Gate {
	g := &Gate{
		name:    name,
		timeout: DefaultTimeout,
		clock:   clock.RealClock{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Issue makes target the displayed value and dispatches the write. A
// dispatch error clears the pending value and is returned unchanged. A later
// Issue overwrites an earlier pending value.
func (g *Gate) Issue(ctx context.Context, target any, dispatch DispatchFunc) error {
	cmd := &PendingCommand{Target: snapshot.Normalize(target), IssuedAt: g.clock.Now()}

	g.mu.Lock()
	g.pending = cmd
	g.mu.Unlock()

	if err := dispatch(ctx); err != nil {
		g.mu.Lock()
		// only clear our own command, not one issued while we were dispatching
		if g.pending == cmd {
			g.pending = nil
			g.logOutcome(OutcomeFailed)
		}
		g.mu.Unlock()
		return err
	}
	return nil
}

// Display returns the value to show given the currently observed one,
// resolving the pending command when it is confirmed or has expired
func (g *Gate) Display(observed any) any {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil {
		return observed
	}
	if snapshot.ValuesEqual(observed, g.pending.Target) {
		g.pending = nil
		g.logOutcome(OutcomeConfirmed)
		return observed
	}
	if g.clock.Since(g.pending.IssuedAt) > g.timeout {
		g.pending = nil
		g.logOutcome(OutcomeTimedOut)
		return observed
	}
	return g.pending.Target
}

// State reports whether a command is pending. It does not resolve it; use
// Display for that.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil {
		return StateIdle
	}
	return StatePending
}

// Pending returns a copy of the pending command, if any
func (g *Gate) Pending() (PendingCommand, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil {
		return PendingCommand{}, false
	}
	return *g.pending, true
}

func (g *Gate) logOutcome(outcome Outcome) {
	slog.Debug("Optimistic value resolved", "field", g.name, "outcome", string(outcome))
}
