// Package auth obtains and keeps valid the credential used for every remote
// call: password sign-in, refresh-token exchange, and a background refresh loop.
package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/stacklok/poolsync/internal/httpclient"
	"github.com/stacklok/poolsync/internal/telemetry"
)

// DefaultRefreshLookahead is how long before expiry a credential is refreshed
const DefaultRefreshLookahead = 5 * time.Minute

// Credential is a short-lived access token plus what is needed to renew it
type Credential struct {
	Token        string
	RefreshToken string
	Expiry       time.Time
	// LocalID is the account identifier the identity service assigned
	LocalID string
}

// Client is the authenticated connection handed to the document store and
// command dispatcher. A new Client is built every time the credential changes;
// existing Clients are never mutated.
type Client struct {
	credential Credential
	generation uint64
}

// NewClient wraps a credential obtained outside a Manager
func NewClient(cred Credential) *Client {
	return &Client{credential: cred}
}

// Token returns the bearer token
func (c *Client) Token() string { return c.credential.Token }

// LocalID returns the account identifier
func (c *Client) LocalID() string { return c.credential.LocalID }

// Expiry returns when the token stops being accepted
func (c *Client) Expiry() time.Time { return c.credential.Expiry }

// Generation increases by one each time the manager rebuilds its Client
func (c *Client) Generation() uint64 { return c.generation }

// Authorize returns the request option that attaches the bearer token
func (c *Client) Authorize() httpclient.RequestOption {
	return httpclient.WithBearerToken(c.credential.Token)
}

// ClientSource hands out Clients that are valid for the next remote call
//
//go:generate mockgen -destination=mocks/mock_client_source.go -package=mocks -source=manager.go ClientSource
type ClientSource interface {
	ValidClient(ctx context.Context) (*Client, error)
}

// RefreshHook is called, outside the manager lock, with the Client built from
// a refreshed credential
type RefreshHook func(ctx context.Context, client *Client)

// Option configures a Manager
type Option func(*Manager)

// WithLookahead overrides DefaultRefreshLookahead
func WithLookahead(d time.Duration) Option {
	return func(m *Manager) {
		m.lookahead = d
	}
}

// WithClock sets the clock used for expiry checks
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) {
		m.clock = clk
	}
}

// WithMetrics records refresh outcomes
func WithMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// Manager owns the single credential of the process. All access to the
// credential goes through one mutex, so concurrent callers that find it near
// expiry trigger exactly one refresh.
type Manager struct {
	identity IdentityClient
	email    string
	password string

	lookahead    time.Duration
	retryInitial time.Duration
	retryMax     time.Duration
	clock        clock.Clock
	metrics      *telemetry.SyncMetrics

	mu         sync.Mutex
	credential *Credential
	client     *Client
	generation uint64
	closed     bool

	hooksMu sync.RWMutex
	hooks   []RefreshHook
}

// NewManager creates a Manager that signs in with the given account
func NewManager(identity IdentityClient, email, password string, opts ...Option) *Manager {
	m := &Manager{
		identity:  identity,
		email:     email,
		password:  password,
		lookahead: DefaultRefreshLookahead,
		clock:     clock.RealClock{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnRefresh registers a hook invoked after every successful refresh
func (m *Manager) OnRefresh(hook RefreshHook) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.hooks = append(m.hooks, hook)
}

// Authenticate signs in with the configured account, replacing any held
// credential. It also reopens a closed Manager.
func (m *Manager) Authenticate(ctx context.Context) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = false
	return m.authenticateLocked(ctx)
}

// ValidClient returns a Client whose token is valid for at least the
// lookahead window, signing in or refreshing first when needed
func (m *Manager) ValidClient(ctx context.Context) (*Client, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if m.credential == nil {
		client, err := m.authenticateLocked(ctx)
		m.mu.Unlock()
		return client, err
	}

	// Callers queued behind a refresh see the renewed expiry here and return
	if !m.needsRefreshLocked() {
		client := m.client
		m.mu.Unlock()
		return client, nil
	}

	client, err := m.refreshLocked(ctx)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	m.notify(ctx, client)
	return client, nil
}

// Refresh unconditionally exchanges the refresh token for a new credential.
// On failure the previous credential is kept.
func (m *Manager) Refresh(ctx context.Context) (*Client, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if m.credential == nil {
		client, err := m.authenticateLocked(ctx)
		m.mu.Unlock()
		return client, err
	}

	client, err := m.refreshLocked(ctx)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	m.notify(ctx, client)
	return client, nil
}

// Current returns the Client built from the held credential, or nil before sign-in
func (m *Manager) Current() *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

// TimeToExpiry returns how long the held credential remains valid. It is
// zero when no credential is held.
func (m *Manager) TimeToExpiry() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.credential == nil {
		return 0
	}
	return m.credential.Expiry.Sub(m.clock.Now())
}

// Close drops the held credential. ValidClient and Refresh fail with
// ErrClosed until the next Authenticate.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.credential = nil
	m.client = nil
}

func (m *Manager) needsRefreshLocked() bool {
	return !m.clock.Now().Before(m.credential.Expiry.Add(-m.lookahead))
}

func (m *Manager) authenticateLocked(ctx context.Context) (*Client, error) {
	cred, err := m.identity.SignIn(ctx, m.email, m.password)
	if err != nil {
		slog.Error("Sign-in failed", "error", err)
		return nil, err
	}

	slog.Info("Signed in", "expires_at", cred.Expiry)
	return m.storeLocked(cred), nil
}

func (m *Manager) refreshLocked(ctx context.Context) (*Client, error) {
	cred, err := m.identity.Refresh(ctx, m.credential.RefreshToken)
	m.metrics.RecordTokenRefresh(ctx, err == nil)
	if err != nil {
		slog.Error("Token refresh failed, keeping previous credential",
			"error", err,
			"expires_at", m.credential.Expiry,
		)
		return nil, err
	}

	if cred.LocalID == "" {
		cred.LocalID = m.credential.LocalID
	}

	slog.Info("Token refreshed", "expires_at", cred.Expiry)
	return m.storeLocked(cred), nil
}

func (m *Manager) storeLocked(cred *Credential) *Client {
	m.generation++
	m.credential = cred
	m.client = &Client{credential: *cred, generation: m.generation}
	return m.client
}

func (m *Manager) notify(ctx context.Context, client *Client) {
	m.hooksMu.RLock()
	hooks := make([]RefreshHook, len(m.hooks))
	copy(hooks, m.hooks)
	m.hooksMu.RUnlock()

	for _, hook := range hooks {
		hook(ctx, client)
	}
}
