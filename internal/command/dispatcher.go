// Package command turns a write against the mirrored document into a call to
// the remote command endpoint. The endpoint applies changes asynchronously;
// only the acceptance of the request is observed here.
package command

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/poolsync/internal/auth"
	"github.com/stacklok/poolsync/internal/httpclient"
	"github.com/stacklok/poolsync/internal/otel"
	"github.com/stacklok/poolsync/internal/snapshot"
	"github.com/stacklok/poolsync/internal/telemetry"
)

const (
	// SendPath is appended to the command endpoint base URL
	SendPath = "/sendPoolCommand"

	// DefaultOperation is the write-remote-pool operation code
	DefaultOperation = "WRP"

	// DefaultSource identifies the client kind to the endpoint
	DefaultSource = "web"

	// GatewayPath is the document field naming the device's network gateway
	GatewayPath = "wifi"
)

// Command is one write ready to be sent
type Command struct {
	// PoolID is the document id of the device
	PoolID string
	// Gateway is the value of the document's wifi field
	Gateway any
	// Path is the dotted path being written
	Path string
	// Changes is the serialized subtree produced by BuildChanges
	Changes string
}

// New builds the Command writing value at path of the given snapshot
func New(snap *snapshot.Snapshot, poolID, path string, value any) (Command, error) {
	changes, err := BuildChanges(snap, path, value)
	if err != nil {
		return Command{}, err
	}
	return Command{
		PoolID:  poolID,
		Gateway: snap.Get(GatewayPath),
		Path:    path,
		Changes: changes,
	}, nil
}

// Dispatcher sends commands to the remote endpoint
//
//go:generate mockgen -destination=mocks/mock_dispatcher.go -package=mocks -source=dispatcher.go Dispatcher
type Dispatcher interface {
	Send(ctx context.Context, client *auth.Client, cmd Command) error
}

// request is the body of the command endpoint call
type request struct {
	Gateway     any    `json:"gateway"`
	PoolID      string `json:"poolId"`
	Operation   string `json:"operation"`
	OperationID string `json:"operationId"`
	Changes     string `json:"changes"`
	Pool        any    `json:"pool"`
	Source      string `json:"source"`
}

// Option configures the HTTP dispatcher
type Option func(*httpDispatcher)

// WithOperation overrides DefaultOperation
func WithOperation(operation string) Option {
	return func(d *httpDispatcher) {
		if operation != "" {
			d.operation = operation
		}
	}
}

// WithSource overrides DefaultSource
func WithSource(source string) Option {
	return func(d *httpDispatcher) {
		if source != "" {
			d.source = source
		}
	}
}

// WithTracer sets the tracer used for dispatch spans
func WithTracer(tracer trace.Tracer) Option {
	return func(d *httpDispatcher) {
		d.tracer = tracer
	}
}

// WithMetrics records dispatch outcomes
func WithMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(d *httpDispatcher) {
		d.metrics = metrics
	}
}

type httpDispatcher struct {
	httpClient httpclient.Client
	url        string
	operation  string
	source     string
	tracer     trace.Tracer
	metrics    *telemetry.SyncMetrics
}

// NewDispatcher creates a Dispatcher posting to {endpoint}/sendPoolCommand
func NewDispatcher(httpClient httpclient.Client, endpoint string, opts ...Option) Dispatcher {
	d := &httpDispatcher{
		httpClient: httpClient,
		url:        strings.TrimSuffix(endpoint, "/") + SendPath,
		operation:  DefaultOperation,
		source:     DefaultSource,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *httpDispatcher) Send(ctx context.Context, client *auth.Client, cmd Command) error {
	operationID := uuid.NewString()
	ctx, span := otel.StartSpan(ctx, d.tracer, "command.Send",
		trace.WithAttributes(
			otel.AttrDocumentID.String(cmd.PoolID),
			otel.AttrPath.String(cmd.Path),
			otel.AttrOperationID.String(operationID),
		),
	)
	defer span.End()

	body := request{
		Gateway:     cmd.Gateway,
		PoolID:      cmd.PoolID,
		Operation:   d.operation,
		OperationID: operationID,
		Changes:     cmd.Changes,
		Source:      d.source,
	}

	start := time.Now()
	_, err := d.httpClient.PostJSON(ctx, d.url, body, client.Authorize())
	d.metrics.RecordCommand(ctx, cmd.Path, time.Since(start), err == nil)
	if err != nil {
		otel.RecordError(span, err)
		slog.Error("Command was not accepted",
			"path", cmd.Path,
			"pool_id", cmd.PoolID,
			"operation_id", operationID,
			"error", err,
		)
		return &CommandDispatchError{Path: cmd.Path, Message: "endpoint rejected the request", Err: err}
	}

	slog.Debug("Command accepted",
		"path", cmd.Path,
		"pool_id", cmd.PoolID,
		"operation_id", operationID,
	)
	return nil
}
