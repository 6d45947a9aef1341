package emit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer(t *testing.T) (*tracetest.InMemoryExporter, *OTelEmitter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter, NewOTelEmitter(tp.Tracer("dygram-test"))
}

func TestOTelEmitterEmitRecordsSpanWithAttributes(t *testing.T) {
	exporter, o := newRecordingTracer(t)

	o.Emit(Event{RunID: "run-1", Step: 4, NodeID: "lookup", Msg: "step_end", Meta: map[string]any{"status": "continue"}})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "step_end", spans[0].Name)
}

func TestOTelEmitterEmitSetsErrorStatusFromMeta(t *testing.T) {
	exporter, o := newRecordingTracer(t)

	o.Emit(Event{RunID: "run-1", Msg: "step_end", Meta: map[string]any{"error": "boom"}})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "boom", spans[0].Status.Description)
}

func TestOTelEmitterEmitBatch(t *testing.T) {
	exporter, o := newRecordingTracer(t)

	err := o.EmitBatch(context.Background(), []Event{
		{RunID: "run-1", Msg: "a"},
		{RunID: "run-1", Msg: "b"},
	})
	require.NoError(t, err)
	assert.Len(t, exporter.GetSpans(), 2)
}

func TestOTelEmitterEmitBatchEmptyIsNoOp(t *testing.T) {
	exporter, o := newRecordingTracer(t)
	require.NoError(t, o.EmitBatch(context.Background(), nil))
	assert.Empty(t, exporter.GetSpans())
}

func TestOTelEmitterFlushWithoutForceFlushSupportIsNoOp(t *testing.T) {
	o := NewOTelEmitter(sdktrace.NewTracerProvider().Tracer("dygram-test"))
	assert.NoError(t, o.Flush(context.Background()))
}
