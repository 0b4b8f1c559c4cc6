package observes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewTracerRequiresEndpoint(t *testing.T) {
	_, err := NewTracer(context.Background(), nil)
	assert.Error(t, err)
	_, err = NewTracer(context.Background(), &TracerOption{})
	assert.Error(t, err)
}

func TestTracerProviderSamplesEverythingByDefault(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := NewTracerProvider(0, nil, sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "job.Start")
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "job.Start", spans[0].Name())
}
