package telemetry

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestInitTracerWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracingConfig{ServiceName: "encwallet-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestExporterOptions(t *testing.T) {
	assert.Len(t, exporterOptions("collector:4318"), 3)
	assert.Len(t, exporterOptions("https://collector.example/v1/traces"), 2)
}

func TestNewRootContext(t *testing.T) {
	ctx, id := NewRootContext(context.Background())
	require.Len(t, id, 32)
	spanCtx := trace.SpanContextFromContext(ctx)
	assert.Equal(t, id, spanCtx.TraceID().String())
	assert.True(t, spanCtx.IsSampled())
	assert.False(t, spanCtx.IsRemote())
}

func TestContextWithTraceID(t *testing.T) {
	hexID := "4bf92f3577b34da6a3ce929d0e0e4736"

	ctx, ok := ContextWithTraceID(context.Background(), hexID)
	require.True(t, ok)
	spanCtx := trace.SpanContextFromContext(ctx)
	assert.Equal(t, hexID, spanCtx.TraceID().String())
	assert.True(t, spanCtx.IsRemote())

	_, ok = ContextWithTraceID(context.Background(), "not-a-trace")
	assert.False(t, ok)
}

func TestMessageHeadersCarryTypeAndTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	ctx, id := NewRootContext(context.Background())
	spanCtx := trace.SpanContextFromContext(ctx)

	msg := kafka.Message{Headers: MessageHeaders(ctx, "transfer")}
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "transfer", MessageType(msg))

	extracted := trace.SpanContextFromContext(ContextFromMessage(context.Background(), msg))
	assert.Equal(t, id, extracted.TraceID().String())
	assert.Equal(t, spanCtx.SpanID(), extracted.SpanID())
}

func TestMessageHeadersWithoutTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	msg := kafka.Message{Headers: MessageHeaders(context.Background(), "checkpoint")}

	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "checkpoint", MessageType(msg))
	assert.Equal(t, "", MessageType(kafka.Message{}))
	assert.False(t, trace.SpanContextFromContext(ContextFromMessage(context.Background(), msg)).IsValid())
}
