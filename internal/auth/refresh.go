package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// MinRefreshDelay bounds how often the refresh loop wakes up
	MinRefreshDelay = 10 * time.Second

	// DefaultRetryInitial is the first delay after a failed background refresh
	DefaultRetryInitial = 10 * time.Second

	// DefaultRetryMax caps the delay between failed background refreshes
	DefaultRetryMax = 10 * time.Minute
)

// WithRetryBackoff sets the exponential backoff bounds used after a failed
// background refresh
func WithRetryBackoff(initial, maxInterval time.Duration) Option {
	return func(m *Manager) {
		m.retryInitial = initial
		m.retryMax = maxInterval
	}
}

// RunRefreshLoop renews the credential shortly before it expires until ctx is
// cancelled. Failures are logged and retried with exponential backoff; the
// previous credential stays in use meanwhile.
func (m *Manager) RunRefreshLoop(ctx context.Context) {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = m.getRetryInitial()
	retry.MaxInterval = m.getRetryMax()
	retry.Reset()

	wait := m.refreshDelay()
	for {
		slog.Debug("Next token refresh scheduled", "in", wait)

		timer := m.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C():
		}

		if _, err := m.ValidClient(ctx); err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrClosed) {
				return
			}
			wait = retry.NextBackOff()
			slog.Warn("Background token refresh failed", "error", err, "retry_in", wait)
			continue
		}

		retry.Reset()
		wait = m.refreshDelay()
	}
}

// refreshDelay is the time until the credential enters the lookahead window,
// never less than MinRefreshDelay
func (m *Manager) refreshDelay() time.Duration {
	return max(m.TimeToExpiry()-m.lookahead, MinRefreshDelay)
}

func (m *Manager) getRetryInitial() time.Duration {
	if m.retryInitial <= 0 {
		return DefaultRetryInitial
	}
	return m.retryInitial
}

func (m *Manager) getRetryMax() time.Duration {
	if m.retryMax <= 0 {
		return DefaultRetryMax
	}
	return m.retryMax
}
