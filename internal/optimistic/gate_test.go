package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

func newTestGate() (*Gate, *clocktesting.FakePassiveClock) {
	clk := clocktesting.NewFakePassiveClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewGate("light.status", WithClock(clk)), clk
}

func accept(context.Context) error { return nil }

func TestGate_IdleShowsObserved(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate()
	assert.Equal(t, StateIdle, g.State())
	assert.Equal(t, 0.0, g.Display(0.0))
	assert.Equal(t, 1.0, g.Display(1.0))
}

func TestGate_ShowsTargetImmediately(t *testing.T) {
	t.Parallel()

	g, clk := newTestGate()
	require.NoError(t, g.Issue(context.Background(), 1, accept))

	assert.Equal(t, StatePending, g.State())
	assert.Equal(t, 1.0, g.Display(0.0))

	cmd, ok := g.Pending()
	require.True(t, ok)
	assert.Equal(t, 1.0, cmd.Target)
	assert.Equal(t, clk.Now(), cmd.IssuedAt)
}

func TestGate_ConfirmationReturnsToIdle(t *testing.T) {
	t.Parallel()

	g, clk := newTestGate()
	require.NoError(t, g.Issue(context.Background(), 1, accept))

	clk.SetTime(clk.Now().Add(3 * time.Second))
	assert.Equal(t, 1.0, g.Display(1.0))
	assert.Equal(t, StateIdle, g.State())

	// afterwards the display tracks the document again
	assert.Equal(t, 0.0, g.Display(0.0))
}

func TestGate_RevertsAfterTimeout(t *testing.T) {
	t.Parallel()

	g, clk := newTestGate()
	start := clk.Now()
	require.NoError(t, g.Issue(context.Background(), 1, accept))

	clk.SetTime(start.Add(DefaultTimeout - time.Second))
	assert.Equal(t, 1.0, g.Display(0.0))

	clk.SetTime(start.Add(DefaultTimeout))
	assert.Equal(t, 1.0, g.Display(0.0), "still pending at exactly the timeout")

	clk.SetTime(start.Add(DefaultTimeout + time.Millisecond))
	assert.Equal(t, 0.0, g.Display(0.0))
	assert.Equal(t, StateIdle, g.State())
}

func TestGate_DispatchFailureReverts(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate()
	boom := errors.New("endpoint down")

	var displayedDuringDispatch any
	err := g.Issue(context.Background(), 1, func(context.Context) error {
		displayedDuringDispatch = g.Display(0.0)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, displayedDuringDispatch)
	assert.Equal(t, StateIdle, g.State())
	assert.Equal(t, 0.0, g.Display(0.0))
}

func TestGate_NewCommandOverwritesPending(t *testing.T) {
	t.Parallel()

	g, clk := newTestGate()
	start := clk.Now()
	require.NoError(t, g.Issue(context.Background(), 1, accept))

	clk.SetTime(start.Add(15 * time.Second))
	require.NoError(t, g.Issue(context.Background(), 2, accept))

	// the first command's deadline has passed but the second one's has not
	clk.SetTime(start.Add(25 * time.Second))
	assert.Equal(t, 2.0, g.Display(0.0))

	// confirming the overwritten target does not resolve the newer one
	assert.Equal(t, 2.0, g.Display(1.0))
}

func TestGate_FailureDoesNotClearNewerCommand(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate()
	inDispatch := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = g.Issue(context.Background(), 1, func(context.Context) error {
			close(inDispatch)
			<-release
			return errors.New("late failure")
		})
	}()

	<-inDispatch
	require.NoError(t, g.Issue(context.Background(), 2, accept))
	close(release)
	wg.Wait()

	cmd, ok := g.Pending()
	require.True(t, ok)
	assert.Equal(t, 2.0, cmd.Target)
}

func TestGate_CustomTimeout(t *testing.T) {
	t.Parallel()

	clk := clocktesting.NewFakePassiveClock(time.Now())
	g := NewGate("pump", WithClock(clk), WithTimeout(5*time.Second))
	require.NoError(t, g.Issue(context.Background(), "Auto", accept))

	clk.SetTime(clk.Now().Add(6 * time.Second))
	assert.Equal(t, "Manual", g.Display("Manual"))
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	clk := clocktesting.NewFakePassiveClock(time.Now())
	r := NewRegistry(WithClock(clk))

	assert.Equal(t, 0.0, r.Display("light.status", 0.0), "unknown paths show the observed value")
	assert.Same(t, r.Gate("light.status"), r.Gate("light.status"))

	require.NoError(t, r.Gate("light.status").Issue(context.Background(), 1, accept))
	assert.Equal(t, 1.0, r.Display("light.status", 0.0))
	assert.Equal(t, 0.0, r.Display("hidro.level", 0.0))

	pending := r.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 1.0, pending["light.status"].Target)
}
