// Package telemetry wraps the OpenTelemetry tracer used to follow a
// request across provider dispatch and retry.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "internal/provider"

// StartProviderSpan opens a span for one provider dispatch attempt,
// tagging it with the provider identifier and requested model.
func StartProviderSpan(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "provider.execute")
	span.SetAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
	)
	return ctx, span
}

// RecordLatency stamps the span with the elapsed wall-clock duration since
// start. Call right before span.End().
func RecordLatency(span trace.Span, start time.Time) {
	if span == nil {
		return
	}
	span.SetAttributes(attribute.Int64("llm.latency_ms", time.Since(start).Milliseconds()))
}

// RecordError marks the span as failed and attaches the error, without
// ending it (callers still control span lifetime via defer span.End()).
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
