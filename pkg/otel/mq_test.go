package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestMQHeaderCarrierPropagation(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := map[string]interface{}{}
	GetTextMapPropagator().Inject(ctx, NewMQHeaderCarrier(headers))
	if headers["traceparent"] == nil {
		t.Fatalf("expected traceparent header, got %v", headers)
	}

	extracted := GetTextMapPropagator().Extract(context.Background(), NewMQHeaderCarrier(headers))
	got := trace.SpanContextFromContext(extracted)
	if got.TraceID() != traceID {
		t.Errorf("expected trace id %s, got %s", traceID, got.TraceID())
	}
}
