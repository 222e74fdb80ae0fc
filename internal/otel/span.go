// Package otel provides span helpers shared by the synchronization components.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by every span the synchronizer emits
const (
	AttrDocumentID    = attribute.Key("pool.document_id")
	AttrCollection    = attribute.Key("pool.collection")
	AttrPath          = attribute.Key("pool.path")
	AttrOperationID   = attribute.Key("pool.operation_id")
	AttrSource        = attribute.Key("snapshot.source")
	AttrRevision      = attribute.Key("snapshot.revision")
	AttrDriftDetected = attribute.Key("reconcile.drift")
	AttrReason        = attribute.Key("subscription.reason")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns a no-op span.
// This provides graceful degradation when tracing is disabled.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records an error on a span and sets the span status to error.
// It safely handles nil spans and nil errors.
// The status description stays generic so tokens and payloads never land in
// span status; the error itself is attached as a span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
