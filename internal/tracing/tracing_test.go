package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSpansAreRecorded(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	require.NoError(t, InitWithExporter("vigil-test", "dev", exporter))

	ctx, parent := StartSpan(context.Background(), "validator.submit", KindServer)
	parent.WithAttributes(map[string]string{"victim_id": "v1"})

	_, child := StartSpan(ctx, "validator.publish", KindProducer)
	EndSpan(child, errors.New("redis down"))
	EndSpan(parent, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, "validator.publish", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())

	assert.Equal(t, "validator.submit", spans[1].Name)
	assert.Equal(t, codes.Ok, spans[1].Status.Code)

	require.NoError(t, Shutdown(context.Background()))
}

func TestNilSpanIsSafe(t *testing.T) {
	var s *Span
	assert.Nil(t, s.WithAttributes(map[string]string{"a": "b"}))
	EndSpan(nil, nil)
}
