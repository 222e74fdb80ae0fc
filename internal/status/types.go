// Package status tracks the synchronization state of the mirrored document.
// The status lives in memory only and is rebuilt on every start.
package status

import "time"

// SyncPhase represents the current phase of the synchronizer
type SyncPhase string

const (
	// SyncPhaseStarting means the initial fetch has not completed yet
	SyncPhaseStarting SyncPhase = "Starting"

	// SyncPhaseSyncing means a snapshot is loaded and the push channel is open
	SyncPhaseSyncing SyncPhase = "Syncing"

	// SyncPhaseDegraded means a snapshot is served but the push channel is
	// down; the poller still bounds staleness
	SyncPhaseDegraded SyncPhase = "Degraded"

	// SyncPhaseFailed means setup failed and nothing is being mirrored
	SyncPhaseFailed SyncPhase = "Failed"

	// SyncPhaseStopped means the synchronizer has shut down
	SyncPhaseStopped SyncPhase = "Stopped"
)

// SyncStatus is a point-in-time copy of the synchronizer state
type SyncStatus struct {
	// Phase represents the current synchronization phase
	Phase SyncPhase `json:"phase"`

	// Message provides additional information about the phase
	Message string `json:"message,omitempty"`

	// DocumentID is the mirrored document, empty until one is configured
	DocumentID string `json:"documentId,omitempty"`

	// Revision is the number of snapshots applied since start
	Revision uint64 `json:"revision"`

	// LastUpdateSource is the channel that produced the current snapshot
	LastUpdateSource string `json:"lastUpdateSource,omitempty"`

	// LastUpdateTime is when the current snapshot was applied
	LastUpdateTime *time.Time `json:"lastUpdateTime,omitempty"`

	// LastPushTime is when the push channel last delivered a snapshot
	LastPushTime *time.Time `json:"lastPushTime,omitempty"`

	// LastPollTime is when the reconciliation poller last completed a fetch
	LastPollTime *time.Time `json:"lastPollTime,omitempty"`

	// DriftCount is the number of polls that found the snapshot stale
	DriftCount int `json:"driftCount"`

	// DroppedUpdates counts push payloads that were never applied
	DroppedUpdates int `json:"droppedUpdates"`

	// SubscriptionGeneration increases every time the push channel is reopened
	SubscriptionGeneration uint64 `json:"subscriptionGeneration"`

	// LastHealthProbe is when the health monitor last probed the document
	LastHealthProbe *time.Time `json:"lastHealthProbe,omitempty"`

	// HealthProbeFailures is the number of consecutive failed probes
	HealthProbeFailures int `json:"healthProbeFailures"`

	// CredentialExpiry is when the current bearer token expires
	CredentialExpiry *time.Time `json:"credentialExpiry,omitempty"`
}
