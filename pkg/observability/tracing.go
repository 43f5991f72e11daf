// Package observability provides tracing of pipeline stages for tabula.
//
// Each pipeline stage (read, fit, persist, predict, write) runs inside a span.
// When tracing is disabled the pipelines receive a no-op tracer, so stage code
// never branches on whether tracing is on.
package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName names the tracer used by the pipelines.
const InstrumentationName = "github.com/ajitpratap0/tabula"

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// Writer receives pretty-printed spans; defaults to stderr
	Writer io.Writer
	// Exporter overrides the stdout exporter
	Exporter sdktrace.SpanExporter
}

// Tracing owns the tracer provider of a run.
type Tracing struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing sets up span export. A disabled config yields a no-op tracer
// and a Shutdown that does nothing.
func InitTracing(config TracingConfig) (*Tracing, error) {
	if !config.Enabled {
		return &Tracing{tracer: noop.NewTracerProvider().Tracer(InstrumentationName)}, nil
	}

	exporter := config.Exporter
	if exporter == nil {
		w := config.Writer
		if w == nil {
			w = os.Stderr
		}
		var err error
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	}

	serviceName := config.ServiceName
	if serviceName == "" {
		serviceName = "tabula"
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", config.ServiceVersion),
	)

	// runs are short-lived, so spans are exported synchronously
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(tp)

	return &Tracing{
		provider: tp,
		tracer:   tp.Tracer(InstrumentationName),
	}, nil
}

// Tracer returns the tracer handed to the pipelines.
func (t *Tracing) Tracer() trace.Tracer {
	return t.tracer
}

// Shutdown flushes and stops the tracer provider.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	if err := t.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	return nil
}

// Span represents a pipeline stage span.
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// StartSpan starts the span of a pipeline stage, named "<pipeline>.<stage>".
func StartSpan(ctx context.Context, tracer trace.Tracer, pipeline, stage string) (context.Context, *Span) {
	ctx, span := tracer.Start(ctx, pipeline+"."+stage)
	s := &Span{span: span, startTime: time.Now()}
	s.SetAttribute("tabula.pipeline", pipeline)
	s.SetAttribute("tabula.stage", stage)
	return ctx, s
}

// SetAttribute adds an attribute to the span. Attributes are applied on End.
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// Elapsed returns the time since the span started.
func (s *Span) Elapsed() time.Duration {
	return time.Since(s.startTime)
}

// End ends the span, marking it failed when err is non-nil.
func (s *Span) End(err error) {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
