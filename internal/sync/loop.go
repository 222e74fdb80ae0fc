package sync

import (
	"context"
	"time"

	"k8s.io/utils/clock"

	"github.com/stacklok/poolsync/internal/status"
	"github.com/stacklok/poolsync/internal/telemetry"
)

// Option configures a Poller or a HealthMonitor
type Option func(*loopOptions)

type loopOptions struct {
	clock    clock.WithTicker
	metrics  *telemetry.SyncMetrics
	status   *status.Tracker
	detector DriftDetector
}

// WithClock sets the clock driving the loop ticker
func WithClock(clk clock.WithTicker) Option {
	return func(o *loopOptions) {
		o.clock = clk
	}
}

// WithMetrics records loop outcomes
func WithMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(o *loopOptions) {
		o.metrics = metrics
	}
}

// WithStatus reports loop outcomes to tracker
func WithStatus(tracker *status.Tracker) Option {
	return func(o *loopOptions) {
		o.status = tracker
	}
}

// WithDriftDetector overrides the detector used by the Poller
func WithDriftDetector(detector DriftDetector) Option {
	return func(o *loopOptions) {
		o.detector = detector
	}
}

func newLoopOptions(opts []Option) loopOptions {
	o := loopOptions{
		clock:    clock.RealClock{},
		detector: DefaultDriftDetector{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// runEvery calls tick every interval until ctx is cancelled. The first call
// happens one interval after start.
func runEvery(ctx context.Context, clk clock.WithTicker, interval time.Duration, tick func(context.Context)) {
	ticker := clk.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			tick(ctx)
		}
	}
}
