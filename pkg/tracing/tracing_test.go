package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	ferncontext "github.com/Ramsey-B/fern/pkg/context"
)

func TestStartSpan_NoTracer(t *testing.T) {
	SetTracer(nil)

	ctx, span := StartSpan(context.Background(), "noop")
	span.End()

	assert.Nil(t, GetActiveSpan(ctx))
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetTraceParent(ctx))
}

func TestStartSpan_RequestAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	SetTracer(provider.Tracer("test"))
	t.Cleanup(func() { SetTracer(nil) })

	ctx := ferncontext.SetShop(context.Background(), "acme")
	ctx = ferncontext.SetProductID(ctx, "123")

	ctx, span := StartSpan(ctx, "resolver.Resolve", attribute.String("fern.kind", "custom"))
	traceID := GetTraceID(ctx)
	traceParent := GetTraceParent(ctx)
	Fail(span, errors.New("boom"))
	span.End()

	assert.Len(t, traceID, 32)
	assert.Contains(t, traceParent, traceID)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "resolver.Resolve", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	attrs := map[attribute.Key]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value.AsString()
	}
	assert.Equal(t, "acme", attrs["fern.shop"])
	assert.Equal(t, "123", attrs["fern.product_id"])
	assert.Equal(t, "custom", attrs["fern.kind"])
}
