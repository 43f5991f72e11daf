package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracing_Disabled(t *testing.T) {
	tr, err := InitTracing(TracingConfig{})
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), tr.Tracer(), "train", "read")
	span.End(nil)
	assert.NoError(t, tr.Shutdown(context.Background()))
}

func TestStartSpan_RecordsStageAndStatus(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tr, err := InitTracing(TracingConfig{Enabled: true, Exporter: exporter})
	require.NoError(t, err)
	defer func() { _ = tr.Shutdown(context.Background()) }()

	_, ok := StartSpan(context.Background(), tr.Tracer(), "train", "fit")
	ok.SetAttribute("rows", 2)
	ok.End(nil)

	_, failed := StartSpan(context.Background(), tr.Tracer(), "predict", "write")
	failed.End(errors.New("disk full"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, "train.fit", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "train", attrs["tabula.pipeline"])
	assert.Equal(t, "fit", attrs["tabula.stage"])
	assert.Equal(t, "2", attrs["rows"])

	assert.Equal(t, "predict.write", spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, "disk full", spans[1].Status.Description)
}

func TestInitTracing_StdoutWriter(t *testing.T) {
	var buf bytes.Buffer
	tr, err := InitTracing(TracingConfig{Enabled: true, Writer: &buf, ServiceVersion: "test"})
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), tr.Tracer(), "predict", "predict")
	span.End(nil)
	require.NoError(t, tr.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "predict.predict")
}
