// Package docstore talks to the remote document store holding the device
// record: full document reads over REST and push updates over a websocket
// listen channel.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/poolsync/internal/auth"
	"github.com/stacklok/poolsync/internal/httpclient"
	"github.com/stacklok/poolsync/internal/otel"
	"github.com/stacklok/poolsync/internal/snapshot"
)

// DefaultHandshakeTimeout bounds the websocket upgrade of a listen channel
const DefaultHandshakeTimeout = 15 * time.Second

// Ref addresses one document
type Ref struct {
	Collection string
	ID         string
}

// Path returns the document path relative to the database root
func (r Ref) Path() string {
	return r.Collection + "/" + r.ID
}

func (r Ref) String() string {
	return r.Path()
}

// UpdateFunc receives the raw payload of every document change. It is called
// on the listener's own goroutine and must not block.
type UpdateFunc func(payload []byte)

// Handle is one open push channel
type Handle interface {
	// Close tears the channel down. It is idempotent.
	Close() error

	// Done is closed once the channel stops delivering, for any reason
	Done() <-chan struct{}
}

// Store reads and listens to documents
//
//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Store,Handle
type Store interface {
	// Get fetches the full document
	Get(ctx context.Context, client *auth.Client, ref Ref) (*snapshot.Snapshot, error)

	// Listen opens a push channel on the document
	Listen(ctx context.Context, client *auth.Client, ref Ref, onUpdate UpdateFunc) (Handle, error)
}

// Option configures the REST store
type Option func(*restStore)

// WithTracer sets the tracer used for document reads
func WithTracer(tracer trace.Tracer) Option {
	return func(s *restStore) {
		s.tracer = tracer
	}
}

// WithDialer overrides the websocket dialer
func WithDialer(dialer *websocket.Dialer) Option {
	return func(s *restStore) {
		s.dialer = dialer
	}
}

type restStore struct {
	httpClient httpclient.Client
	baseURL    string
	listenURL  string
	dialer     *websocket.Dialer
	tracer     trace.Tracer
}

// New creates a Store reading documents from baseURL (the REST documents
// root) and listening on listenURL (a ws:// or wss:// endpoint)
func New(httpClient httpclient.Client, baseURL, listenURL string, opts ...Option) Store {
	s := &restStore{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		listenURL:  listenURL,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: DefaultHandshakeTimeout,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *restStore) Get(ctx context.Context, client *auth.Client, ref Ref) (*snapshot.Snapshot, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "docstore.Get",
		trace.WithAttributes(
			otel.AttrCollection.String(ref.Collection),
			otel.AttrDocumentID.String(ref.ID),
		),
	)
	defer span.End()

	endpoint := fmt.Sprintf("%s/%s/%s", s.baseURL, url.PathEscape(ref.Collection), url.PathEscape(ref.ID))
	body, err := s.httpClient.Get(ctx, endpoint, client.Authorize())
	if err != nil {
		otel.RecordError(span, err)
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
		}
		return nil, &TransportError{Op: "get " + ref.Path(), Err: err}
	}

	snap, err := DecodeDocument(body)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to decode %s: %w", ref, err)
	}
	return snap, nil
}

func (s *restStore) Listen(ctx context.Context, client *auth.Client, ref Ref, onUpdate UpdateFunc) (Handle, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+client.Token())

	conn, resp, err := s.dialer.DialContext(ctx, s.listenURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, &TransportError{Op: "listen " + ref.Path(), Err: err}
	}

	if err := conn.WriteJSON(newListenRequest(ref)); err != nil {
		_ = conn.Close()
		return nil, &TransportError{Op: "listen " + ref.Path(), Err: err}
	}

	h := newListenHandle(conn, ref)
	go h.read(onUpdate)
	return h, nil
}
