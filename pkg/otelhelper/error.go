package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError records err on the span and marks it failed. Extra attributes
// are attached to the recorded error event.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// StepError marks a step span failed, tagging the node that raised the
// error so failed steps can be filtered by node in traces.
func StepError(span trace.Span, nodeID string, nodeType string, err error) {
	SetError(span, err,
		attribute.String(NodeIDKey, nodeID),
		attribute.String(NodeTypeKey, nodeType),
	)
}
