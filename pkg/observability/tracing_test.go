package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/codes"
)

func TestInitTracingExports(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	var buf bytes.Buffer
	shutdown, err := InitTracing(TracingConfig{ServiceName: "packscan-test", SamplingRate: 1, Output: &buf})
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "scan.fragment", attribute.Int("fragment", 2))
	EndSpan(span, nil)

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "scan.fragment")
	assert.Contains(t, buf.String(), "packscan-test")
}

func TestEndSpanRecordsError(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	otel.SetTracerProvider(tp)

	_, span := StartSpan(context.Background(), "decode")
	EndSpan(span, errors.New("bad pack"))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "decode", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "bad pack", spans[0].Status.Description)
}
