package status

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Tracker accumulates the synchronizer status. All methods are safe for
// concurrent use and a nil Tracker ignores every call.
type Tracker struct {
	clock clock.PassiveClock

	mu     sync.Mutex
	status SyncStatus
}

// NewTracker creates a tracker in the Starting phase
func NewTracker(documentID string, clk clock.PassiveClock) *Tracker {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Tracker{
		clock: clk,
		status: SyncStatus{
			Phase:      SyncPhaseStarting,
			DocumentID: documentID,
		},
	}
}

// SetPhase moves the tracker to phase
func (t *Tracker) SetPhase(phase SyncPhase, message string) {
	t.update(func(s *SyncStatus, _ time.Time) {
		s.Phase = phase
		s.Message = message
	})
}

// RecordUpdate notes that a snapshot from source became the current one
func (t *Tracker) RecordUpdate(source string, revision uint64, at time.Time) {
	t.update(func(s *SyncStatus, _ time.Time) {
		s.Revision = revision
		s.LastUpdateSource = source
		s.LastUpdateTime = &at
		if source == "push" {
			s.LastPushTime = &at
		}
	})
}

// RecordPoll notes a completed reconciliation fetch
func (t *Tracker) RecordPoll(drift bool) {
	t.update(func(s *SyncStatus, now time.Time) {
		s.LastPollTime = &now
		if drift {
			s.DriftCount++
		}
	})
}

// RecordDropped notes a push payload that was not applied
func (t *Tracker) RecordDropped() {
	t.update(func(s *SyncStatus, _ time.Time) {
		s.DroppedUpdates++
	})
}

// RecordSubscribed notes that push channel generation is now open
func (t *Tracker) RecordSubscribed(generation uint64) {
	t.update(func(s *SyncStatus, _ time.Time) {
		s.SubscriptionGeneration = generation
		if s.Phase == SyncPhaseDegraded || s.Phase == SyncPhaseStarting {
			s.Phase = SyncPhaseSyncing
			s.Message = ""
		}
	})
}

// RecordUnsubscribed notes that the push channel is down
func (t *Tracker) RecordUnsubscribed(reason string) {
	t.update(func(s *SyncStatus, _ time.Time) {
		if s.Phase == SyncPhaseSyncing {
			s.Phase = SyncPhaseDegraded
			s.Message = reason
		}
	})
}

// RecordHealthProbe notes the outcome of a liveness probe
func (t *Tracker) RecordHealthProbe(ok bool) {
	t.update(func(s *SyncStatus, now time.Time) {
		s.LastHealthProbe = &now
		if ok {
			s.HealthProbeFailures = 0
		} else {
			s.HealthProbeFailures++
		}
	})
}

// RecordCredential notes the expiry of the current token
func (t *Tracker) RecordCredential(expiry time.Time) {
	t.update(func(s *SyncStatus, _ time.Time) {
		s.CredentialExpiry = &expiry
	})
}

// Status returns a copy of the current status
func (t *Tracker) Status() SyncStatus {
	if t == nil {
		return SyncStatus{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Tracker) update(fn func(s *SyncStatus, now time.Time)) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.status, t.clock.Now())
}
