package subscription_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/stacklok/poolsync/internal/auth"
	authmocks "github.com/stacklok/poolsync/internal/auth/mocks"
	"github.com/stacklok/poolsync/internal/docstore"
	"github.com/stacklok/poolsync/internal/docstore/mocks"
	"github.com/stacklok/poolsync/internal/snapshot"
	"github.com/stacklok/poolsync/internal/status"
	"github.com/stacklok/poolsync/internal/store"
	"github.com/stacklok/poolsync/internal/sync/subscription"
)

var poolRef = docstore.Ref{Collection: "pools", ID: "pool-1"}

// channels tracks the push channels handed out by a mocked Listen
type channels struct {
	mu        sync.Mutex
	callbacks []docstore.UpdateFunc
	dones     []chan struct{}
	live      atomic.Int32
	maxLive   atomic.Int32
}

func (c *channels) callback(i int) docstore.UpdateFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callbacks[i]
}

func (c *channels) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.callbacks)
}

// kill simulates the remote end dropping channel i
func (c *channels) kill(i int) {
	c.mu.Lock()
	done := c.dones[i]
	c.mu.Unlock()
	close(done)
}

// fakeHandle is closed either by the manager or by kill
type fakeHandle struct {
	chans *channels
	done  chan struct{}
	once  sync.Once
}

func (h *fakeHandle) Close() error {
	h.once.Do(func() {
		h.chans.live.Add(-1)
	})
	return nil
}

func (h *fakeHandle) Done() <-chan struct{} {
	return h.done
}

func (c *channels) listen(_ context.Context, _ *auth.Client, _ docstore.Ref, onUpdate docstore.UpdateFunc) (docstore.Handle, error) {
	// Listen calls are serialized by the manager
	if n := c.live.Add(1); n > c.maxLive.Load() {
		c.maxLive.Store(n)
	}

	handle := &fakeHandle{chans: c, done: make(chan struct{})}

	c.mu.Lock()
	c.callbacks = append(c.callbacks, onUpdate)
	c.dones = append(c.dones, handle.done)
	c.mu.Unlock()
	return handle, nil
}

type fixture struct {
	manager *subscription.Manager
	docs    *mocks.MockStore
	clients *authmocks.MockClientSource
	state   *store.Store
	writer  *store.Writer
	tracker *status.Tracker
	chans   *channels
}

func newFixture(t *testing.T, queueSize int, opts ...subscription.Option) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	f := &fixture{
		docs:    mocks.NewMockStore(ctrl),
		clients: authmocks.NewMockClientSource(ctrl),
		state:   store.New(nil),
		writer:  store.NewWriter(queueSize),
		tracker: status.NewTracker(poolRef.ID, nil),
		chans:   &channels{},
	}
	client := auth.NewClient(auth.Credential{Token: "t", Expiry: time.Now().Add(time.Hour)})
	f.clients.EXPECT().ValidClient(gomock.Any()).Return(client, nil).AnyTimes()
	f.docs.EXPECT().Listen(gomock.Any(), client, poolRef, gomock.Any()).DoAndReturn(f.chans.listen).AnyTimes()

	opts = append([]subscription.Option{subscription.WithStatus(f.tracker)}, opts...)
	f.manager = subscription.NewManager(f.docs, f.clients, poolRef, f.state, f.writer, opts...)
	return f
}

func (f *fixture) runWriter(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go f.writer.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-f.writer.Done()
	})
}

func TestManager_PushUpdatesReachTheStore(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 8)
	f.runWriter(t)

	require.NoError(t, f.manager.Open(context.Background(), subscription.ReasonInitial))
	assert.True(t, f.manager.Live())

	f.chans.callback(0)([]byte(`{"fields":{"main":{"mapValue":{"fields":{"temperature":{"doubleValue":27.0}}}}}}`))

	assert.Eventually(t, func() bool {
		return f.state.Get().Get("main.temperature") == 27.0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, store.SourcePush, f.state.Revision().Source)
	assert.Equal(t, status.SyncPhaseSyncing, f.tracker.Status().Phase)
}

func TestManager_MalformedPayloadIsDropped(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 8)
	f.runWriter(t)
	require.NoError(t, f.manager.Open(context.Background(), subscription.ReasonInitial))

	assert.NotPanics(t, func() {
		f.chans.callback(0)([]byte(`{"fields":{"a":{"bogusValue":1}}}`))
	})

	assert.Nil(t, f.state.Get())
	assert.Equal(t, 1, f.tracker.Status().DroppedUpdates)
	assert.Equal(t, 1, f.chans.count(), "a malformed payload does not reopen the channel")
}

func TestManager_CallbackPanicSchedulesResubscribe(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 8, subscription.WithDecoder(func([]byte) (*snapshot.Snapshot, error) {
		panic("decoder exploded")
	}))
	f.runWriter(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.manager.Run(ctx)

	require.NoError(t, f.manager.Open(ctx, subscription.ReasonInitial))
	assert.NotPanics(t, func() {
		f.chans.callback(0)([]byte(`{}`))
	})

	assert.Eventually(t, func() bool {
		return f.chans.count() == 2
	}, time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, f.chans.maxLive.Load(), int32(1))
}

func TestManager_ConcurrentResubscribesKeepOneChannel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 8)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.manager.Open(ctx, subscription.ReasonManual))
		}()
	}
	wg.Wait()

	assert.Equal(t, 25, f.chans.count())
	assert.Equal(t, int32(1), f.chans.maxLive.Load())
	assert.Equal(t, int32(1), f.chans.live.Load())
	assert.Equal(t, uint64(25), f.manager.Generation())
}

func TestManager_DeadChannelIsReopened(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.manager.Run(ctx)

	require.NoError(t, f.manager.Open(ctx, subscription.ReasonInitial))
	f.chans.kill(0)

	assert.Eventually(t, func() bool {
		return f.chans.count() == 2 && f.manager.Live()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2), f.tracker.Status().SubscriptionGeneration)
}

func TestManager_StaleChannelDeliveriesAreIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 8)
	f.runWriter(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Open(ctx, subscription.ReasonInitial))
	require.NoError(t, f.manager.Open(ctx, subscription.ReasonCredentialRefresh))

	f.chans.callback(0)([]byte(`{"main":{"temperature":1}}`))
	f.chans.callback(1)([]byte(`{"main":{"temperature":2}}`))

	assert.Eventually(t, func() bool {
		return f.state.Get().Get("main.temperature") == 2.0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), f.state.Revision().Number)
	assert.Equal(t, 1, f.tracker.Status().DroppedUpdates)
}

func TestManager_FullQueueDropsUpdates(t *testing.T) {
	t.Parallel()

	// the writer is not running, so the single slot stays occupied
	f := newFixture(t, 1)
	require.NoError(t, f.manager.Open(context.Background(), subscription.ReasonInitial))

	f.chans.callback(0)([]byte(`{"main":{"temperature":1}}`))
	f.chans.callback(0)([]byte(`{"main":{"temperature":2}}`))

	assert.Equal(t, 1, f.tracker.Status().DroppedUpdates)
}

func TestManager_CloseIsFinal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 8)
	ctx := context.Background()
	require.NoError(t, f.manager.Open(ctx, subscription.ReasonInitial))

	f.manager.Close()
	f.manager.Close()
	assert.False(t, f.manager.Live())
	assert.Equal(t, int32(0), f.chans.live.Load())

	require.NoError(t, f.manager.Open(ctx, subscription.ReasonManual))
	assert.False(t, f.manager.Live())
	assert.Equal(t, 1, f.chans.count())
}

func TestManager_OpenErrors(t *testing.T) {
	t.Parallel()

	t.Run("no document", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		m := subscription.NewManager(mocks.NewMockStore(ctrl), authmocks.NewMockClientSource(ctrl),
			docstore.Ref{Collection: "pools"}, store.New(nil), store.NewWriter(1))

		err := m.Open(context.Background(), subscription.ReasonInitial)
		assert.ErrorIs(t, err, subscription.ErrNoDocument)
	})

	t.Run("credential unavailable", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		clients := authmocks.NewMockClientSource(ctrl)
		boom := &auth.AuthError{Kind: auth.KindUnavailable, Message: "down"}
		clients.EXPECT().ValidClient(gomock.Any()).Return(nil, boom)
		m := subscription.NewManager(mocks.NewMockStore(ctrl), clients, poolRef, store.New(nil), store.NewWriter(1))

		err := m.Open(context.Background(), subscription.ReasonInitial)
		assert.True(t, auth.IsAuthError(err))
		assert.False(t, m.Live())
	})

	t.Run("listen fails", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		clients := authmocks.NewMockClientSource(ctrl)
		docs := mocks.NewMockStore(ctrl)
		clients.EXPECT().ValidClient(gomock.Any()).Return(auth.NewClient(auth.Credential{Token: "t"}), nil)
		docs.EXPECT().Listen(gomock.Any(), gomock.Any(), poolRef, gomock.Any()).
			Return(nil, &docstore.TransportError{Op: "listen", Err: errors.New("refused")})
		m := subscription.NewManager(docs, clients, poolRef, store.New(nil), store.NewWriter(1))

		err := m.Open(context.Background(), subscription.ReasonInitial)
		assert.True(t, docstore.IsTransportError(err))
		assert.False(t, m.Live())
	})
}

func TestManager_CredentialRefreshReopensOnlyStaleChannels(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	identity := authmocks.NewMockIdentityClient(ctrl)
	docs := mocks.NewMockStore(ctrl)
	chans := &channels{}
	now := time.Now()
	clk := clocktesting.NewFakeClock(now)

	cred := func(token string) *auth.Credential {
		return &auth.Credential{Token: token, RefreshToken: "rt", Expiry: clk.Now().Add(time.Hour)}
	}
	identity.EXPECT().SignIn(gomock.Any(), gomock.Any(), gomock.Any()).Return(cred("tok-1"), nil)
	docs.EXPECT().Listen(gomock.Any(), gomock.Any(), poolRef, gomock.Any()).DoAndReturn(chans.listen).AnyTimes()

	credentials := auth.NewManager(identity, "owner@example.com", "pw", auth.WithClock(clk))
	manager := subscription.NewManager(docs, credentials, poolRef, store.New(nil), store.NewWriter(8))
	credentials.OnRefresh(func(_ context.Context, client *auth.Client) {
		manager.ScheduleRefresh(client)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.Run(ctx)

	require.NoError(t, manager.Open(ctx, subscription.ReasonInitial))
	require.Equal(t, 1, chans.count())

	// a refresh outside Open moves the channel to the new token
	identity.EXPECT().Refresh(gomock.Any(), "rt").Return(cred("tok-2"), nil)
	_, err := credentials.Refresh(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return chans.count() == 2 && manager.Live()
	}, time.Second, 5*time.Millisecond)

	// a refresh made by Open itself already produced a channel on the new token
	clk.Step(58 * time.Minute)
	identity.EXPECT().Refresh(gomock.Any(), "rt").Return(cred("tok-3"), nil)
	require.NoError(t, manager.Open(ctx, subscription.ReasonManual))
	assert.Equal(t, 3, chans.count())
	assert.Never(t, func() bool {
		return chans.count() > 3
	}, 200*time.Millisecond, 10*time.Millisecond)
	assert.True(t, manager.Live())
	assert.Equal(t, int32(1), chans.maxLive.Load())
}
