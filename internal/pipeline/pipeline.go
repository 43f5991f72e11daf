// Package pipeline runs the two tabula pipelines.
//
// # Overview
//
// The Trainer streams a labeled dataset, fixes the feature order from the
// first row, accumulates the feature matrix, fits the model and commits the
// model and schema artifacts as a pair. The Predictor loads that pair,
// streams an unlabeled dataset through the same Vectorizer semantics and
// writes an (id, prediction) table in input order.
//
// Both pipelines consume rows with dataset.Drain and never share encoder
// state in memory: everything the Predictor knows about the encoding comes
// from the schema artifact.
//
// # Basic Usage
//
//	trainer, err := pipeline.NewTrainer(cfg, logger, pipeline.WithMetrics(collector))
//	result, err := trainer.Run(ctx)
//
//	predictor, err := pipeline.NewPredictor(cfg, logger)
//	result, err := predictor.Run(ctx)
//
// # Stages
//
// Each stage runs inside a "<pipeline>.<stage>" span and its wall time is
// observed in tabula_stage_duration_seconds:
//   - train: read, fit, persist
//   - predict: load, predict, write
package pipeline

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tabula/pkg/config"
	"github.com/ajitpratap0/tabula/pkg/dataset"
	"github.com/ajitpratap0/tabula/pkg/encoding"
	"github.com/ajitpratap0/tabula/pkg/metrics"
	"github.com/ajitpratap0/tabula/pkg/observability"
	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

// Pipeline names used in metric labels and span names.
const (
	PipelineTrain   = "train"
	PipelinePredict = "predict"
)

// Stage names.
const (
	StageRead    = "read"
	StageFit     = "fit"
	StagePersist = "persist"
	StageLoad    = "load"
	StagePredict = "predict"
	StageWrite   = "write"
)

// Option configures a Trainer or Predictor.
type Option func(*deps)

// WithMetrics records the run into c instead of a private collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *deps) {
		r.metrics = c
	}
}

// WithTracer traces stages with t. The default tracer records nothing.
func WithTracer(t trace.Tracer) Option {
	return func(r *deps) {
		r.tracer = t
	}
}

// deps holds the collaborators shared by both pipelines.
type deps struct {
	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
}

func newDeps(logger *zap.Logger, opts []Option) deps {
	r := deps{logger: logger}
	for _, opt := range opts {
		opt(&r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.metrics == nil {
		r.metrics = metrics.NewCollector()
	}
	if r.tracer == nil {
		r.tracer = noop.NewTracerProvider().Tracer(observability.InstrumentationName)
	}
	return r
}

// stage runs fn inside the span of one pipeline stage and records its
// duration, plus the process memory once it succeeds.
func (r *deps) stage(ctx context.Context, pipeline, name string, fn func(context.Context, *observability.Span) error) error {
	ctx, span := observability.StartSpan(ctx, r.tracer, pipeline, name)
	err := fn(ctx, span)
	span.End(err)
	r.metrics.ObserveStage(pipeline, name, span.Elapsed())
	if err != nil {
		r.logger.Debug("stage failed",
			zap.String("span", pipeline+"."+name),
			zap.Duration("elapsed", span.Elapsed()),
			zap.Error(err))
		return err
	}

	rss, err := r.metrics.SampleMemory(pipeline, name)
	if err != nil {
		r.logger.Debug("memory sample unavailable", zap.Error(err))
		return nil
	}
	r.logger.Debug("stage finished",
		zap.String("span", pipeline+"."+name),
		zap.Duration("elapsed", span.Elapsed()),
		zap.Uint64("rss_bytes", rss))
	return nil
}

func validateConfig(cfg *config.Config) error {
	if cfg == nil {
		return tabulaerrors.New(tabulaerrors.ErrorTypeConfig, "configuration is required")
	}
	return cfg.Validate()
}

// categoricalFromConfig builds the one-hot encoding fixed by configuration.
// It returns nil when no column is one-hot encoded.
func categoricalFromConfig(enc config.EncodingConfig) (*encoding.Categorical, error) {
	if enc.CategoricalColumn == "" {
		return nil, nil
	}
	m, err := encoding.NewMapping(enc.Categories)
	if err != nil {
		return nil, err
	}
	return &encoding.Categorical{Column: enc.CategoricalColumn, Mapping: m}, nil
}

func sourceOptions(data config.DataConfig, path, target string, logger *zap.Logger) dataset.Options {
	return dataset.Options{
		Path:         path,
		HasHeader:    data.HasHeader,
		TargetColumn: target,
		Delimiter:    data.DelimiterRune(),
		Prefetch:     data.Prefetch,
		Logger:       logger,
	}
}

// atLine attaches the input line to a structured error.
func atLine(err error, line int) error {
	var te *tabulaerrors.Error
	if errors.As(err, &te) {
		te.WithDetail("line", line)
		return err
	}
	return tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeInternal, "row failed").WithDetail("line", line)
}
