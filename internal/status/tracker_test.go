package status

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

func TestTracker_Lifecycle(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clocktesting.NewFakePassiveClock(now)
	tr := NewTracker("pool-1", clk)

	st := tr.Status()
	assert.Equal(t, SyncPhaseStarting, st.Phase)
	assert.Equal(t, "pool-1", st.DocumentID)

	tr.RecordUpdate("fetch", 1, now)
	tr.RecordSubscribed(1)
	st = tr.Status()
	assert.Equal(t, SyncPhaseSyncing, st.Phase)
	assert.Equal(t, uint64(1), st.Revision)
	assert.Equal(t, "fetch", st.LastUpdateSource)
	assert.Nil(t, st.LastPushTime)

	tr.RecordUnsubscribed("health probe failed")
	st = tr.Status()
	assert.Equal(t, SyncPhaseDegraded, st.Phase)
	assert.Equal(t, "health probe failed", st.Message)

	tr.RecordSubscribed(2)
	pushAt := now.Add(time.Minute)
	tr.RecordUpdate("push", 2, pushAt)
	st = tr.Status()
	assert.Equal(t, SyncPhaseSyncing, st.Phase)
	assert.Empty(t, st.Message)
	assert.Equal(t, uint64(2), st.SubscriptionGeneration)
	require.NotNil(t, st.LastPushTime)
	assert.Equal(t, pushAt, *st.LastPushTime)

	tr.SetPhase(SyncPhaseStopped, "shutdown")
	tr.RecordSubscribed(3)
	assert.Equal(t, SyncPhaseStopped, tr.Status().Phase, "a stopped tracker stays stopped")
}

func TestTracker_Counters(t *testing.T) {
	t.Parallel()

	clk := clocktesting.NewFakePassiveClock(time.Now())
	tr := NewTracker("", clk)

	tr.RecordPoll(false)
	tr.RecordPoll(true)
	tr.RecordDropped()
	tr.RecordHealthProbe(false)
	tr.RecordHealthProbe(false)

	st := tr.Status()
	assert.Equal(t, 1, st.DriftCount)
	assert.Equal(t, 1, st.DroppedUpdates)
	assert.Equal(t, 2, st.HealthProbeFailures)
	require.NotNil(t, st.LastPollTime)

	tr.RecordHealthProbe(true)
	assert.Equal(t, 0, tr.Status().HealthProbeFailures)

	expiry := clk.Now().Add(time.Hour)
	tr.RecordCredential(expiry)
	assert.Equal(t, expiry, *tr.Status().CredentialExpiry)
}

func TestTracker_NilIsNoop(t *testing.T) {
	t.Parallel()

	var tr *Tracker
	assert.NotPanics(t, func() {
		tr.RecordPoll(true)
		tr.SetPhase(SyncPhaseFailed, "x")
	})
	assert.Equal(t, SyncStatus{}, tr.Status())
}

func TestTracker_ConcurrentUse(t *testing.T) {
	t.Parallel()

	tr := NewTracker("pool-1", nil)
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				tr.RecordPoll(true)
				_ = tr.Status()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, tr.Status().DriftCount)
}
