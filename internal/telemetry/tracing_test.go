package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func TestStartSpanNestsChildren(t *testing.T) {
	exp := inMemorySpans(t)

	ctx, parent := StartSpan(context.Background(), "orders.create")
	_, child := StartSpan(ctx, "orders.repository.save")
	child.End()
	parent.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "orders.repository.save", spans[0].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
}

func TestSpanHelpers(t *testing.T) {
	exp := inMemorySpans(t)

	_, span := StartSpan(context.Background(), "payments.confirm")
	AddSpanAttributes(span, attribute.String("order.id", "o-1"))
	AddSpanEvent(span, "gateway.fetched", attribute.String("payment.status", "captured"))
	RecordSpanError(span, errors.New("gateway timeout"))
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	got := spans[0]
	assert.Contains(t, got.Attributes, attribute.String("order.id", "o-1"))
	require.Len(t, got.Events, 2)
	assert.Equal(t, "gateway.fetched", got.Events[0].Name)
	assert.Equal(t, codes.Error, got.Status.Code)
	assert.Equal(t, "gateway timeout", got.Status.Description)
}

func TestSpanHelpersTolerateNil(t *testing.T) {
	assert.NotPanics(t, func() {
		AddSpanAttributes(nil, attribute.Int("n", 1))
		AddSpanEvent(nil, "ignored")
		RecordSpanError(nil, errors.New("boom"))
		SetSpanSuccess(nil)
	})
}

func TestTraceIDs(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
	assert.Empty(t, SpanID(context.Background()))

	inMemorySpans(t)
	ctx, span := StartSpan(context.Background(), "op")
	defer span.End()

	assert.Len(t, TraceID(ctx), 32)
	assert.Len(t, SpanID(ctx), 16)
}
