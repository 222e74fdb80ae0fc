// Package telemetry provides OpenTelemetry instrumentation for the pool synchronizer.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/stacklok/poolsync/sync"
)

// SyncMetrics holds the OpenTelemetry instruments for the synchronization loops.
// A nil *SyncMetrics is valid and records nothing.
type SyncMetrics struct {
	snapshotUpdates metric.Int64Counter
	driftDetected   metric.Int64Counter
	droppedUpdates  metric.Int64Counter
	pollDuration    metric.Float64Histogram
	healthProbes    metric.Int64Counter
	resubscribes    metric.Int64Counter
	tokenRefreshes  metric.Int64Counter
	commands        metric.Int64Counter
	commandDuration metric.Float64Histogram
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)
	m := &SyncMetrics{}

	var err error
	if m.snapshotUpdates, err = meter.Int64Counter(
		"poolsync_snapshot_updates_total",
		metric.WithDescription("Snapshots written to the state store, by source"),
		metric.WithUnit("{snapshot}"),
	); err != nil {
		return nil, err
	}
	if m.driftDetected, err = meter.Int64Counter(
		"poolsync_drift_detected_total",
		metric.WithDescription("Reconciliation polls that found the pushed state out of date"),
		metric.WithUnit("{poll}"),
	); err != nil {
		return nil, err
	}
	if m.droppedUpdates, err = meter.Int64Counter(
		"poolsync_dropped_updates_total",
		metric.WithDescription("Pushed updates discarded before reaching the state store"),
		metric.WithUnit("{update}"),
	); err != nil {
		return nil, err
	}
	if m.pollDuration, err = meter.Float64Histogram(
		"poolsync_poll_duration_seconds",
		metric.WithDescription("Duration of reconciliation polls in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	); err != nil {
		return nil, err
	}
	if m.healthProbes, err = meter.Int64Counter(
		"poolsync_health_probes_total",
		metric.WithDescription("Subscription health probes"),
		metric.WithUnit("{probe}"),
	); err != nil {
		return nil, err
	}
	if m.resubscribes, err = meter.Int64Counter(
		"poolsync_resubscribes_total",
		metric.WithDescription("Push subscription replacements, by reason"),
		metric.WithUnit("{subscription}"),
	); err != nil {
		return nil, err
	}
	if m.tokenRefreshes, err = meter.Int64Counter(
		"poolsync_token_refreshes_total",
		metric.WithDescription("Credential refresh attempts"),
		metric.WithUnit("{refresh}"),
	); err != nil {
		return nil, err
	}
	if m.commands, err = meter.Int64Counter(
		"poolsync_commands_total",
		metric.WithDescription("Commands dispatched to the device service"),
		metric.WithUnit("{command}"),
	); err != nil {
		return nil, err
	}
	if m.commandDuration, err = meter.Float64Histogram(
		"poolsync_command_duration_seconds",
		metric.WithDescription("Duration of command dispatches in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordSnapshotUpdate counts a snapshot written to the state store
func (m *SyncMetrics) RecordSnapshotUpdate(ctx context.Context, source string) {
	if m == nil || m.snapshotUpdates == nil {
		return
	}
	m.snapshotUpdates.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordDrift counts a poll whose result differed from the stored snapshot
func (m *SyncMetrics) RecordDrift(ctx context.Context) {
	if m == nil || m.driftDetected == nil {
		return
	}
	m.driftDetected.Add(ctx, 1)
}

// RecordDroppedUpdate counts a pushed update that never reached the store
func (m *SyncMetrics) RecordDroppedUpdate(ctx context.Context, reason string) {
	if m == nil || m.droppedUpdates == nil {
		return
	}
	m.droppedUpdates.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordPoll records the duration and outcome of a reconciliation poll
func (m *SyncMetrics) RecordPoll(ctx context.Context, duration time.Duration, success bool) {
	if m == nil || m.pollDuration == nil {
		return
	}
	m.pollDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordHealthProbe counts a subscription health probe
func (m *SyncMetrics) RecordHealthProbe(ctx context.Context, success bool) {
	if m == nil || m.healthProbes == nil {
		return
	}
	m.healthProbes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordResubscribe counts a subscription replacement
func (m *SyncMetrics) RecordResubscribe(ctx context.Context, reason string, success bool) {
	if m == nil || m.resubscribes == nil {
		return
	}
	m.resubscribes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
		attribute.Bool("success", success),
	))
}

// RecordTokenRefresh counts a credential refresh attempt
func (m *SyncMetrics) RecordTokenRefresh(ctx context.Context, success bool) {
	if m == nil || m.tokenRefreshes == nil {
		return
	}
	m.tokenRefreshes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordCommand records the duration and outcome of a command dispatch
func (m *SyncMetrics) RecordCommand(ctx context.Context, path string, duration time.Duration, success bool) {
	if m == nil || m.commands == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("path", path),
		attribute.Bool("success", success),
	)
	m.commands.Add(ctx, 1, attrs)
	m.commandDuration.Record(ctx, duration.Seconds(), attrs)
}
