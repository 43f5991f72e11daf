package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tabula/pkg/artifact"
	"github.com/ajitpratap0/tabula/pkg/config"
	"github.com/ajitpratap0/tabula/pkg/dataset"
	"github.com/ajitpratap0/tabula/pkg/encoding"
	"github.com/ajitpratap0/tabula/pkg/metrics"
	"github.com/ajitpratap0/tabula/pkg/model"
	"github.com/ajitpratap0/tabula/pkg/observability"
	"github.com/ajitpratap0/tabula/pkg/output"
	"github.com/ajitpratap0/tabula/pkg/pool"
	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

// Predictor runs the inference pipeline.
type Predictor struct {
	deps
	cfg   *config.Config
	store *artifact.Store
}

// PredictResult summarizes a successful inference run.
type PredictResult struct {
	Rows       int
	OutputPath string
	// UnknownSymbols counts the distinct out-of-domain categorical symbols seen
	UnknownSymbols int
	Fingerprint    string
	Duration       time.Duration
}

// NewPredictor validates cfg and prepares an inference run.
func NewPredictor(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Predictor, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.Output.Path == "" {
		return nil, tabulaerrors.New(tabulaerrors.ErrorTypeConfig, "output.path is required")
	}
	d := newDeps(logger, opts)
	return &Predictor{
		deps:  d,
		cfg:   cfg,
		store: artifact.NewStore(cfg.Artifacts, d.logger),
	}, nil
}

// Run predicts every row of the configured dataset. The table appears at the
// output path only after the last row has been written.
func (p *Predictor) Run(ctx context.Context) (*PredictResult, error) {
	start := time.Now()

	var bundle *artifact.Bundle
	err := p.stage(ctx, PipelinePredict, StageLoad, func(_ context.Context, span *observability.Span) error {
		var err error
		bundle, err = p.store.Load()
		if bundle != nil {
			span.SetAttribute("tabula.schema_fingerprint", bundle.Schema.Fingerprint())
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	sc := bundle.Schema

	unknown := newUnknownTracker(p.logger, p.metrics)
	vec, err := encoding.NewVectorizer(sc.FeatureOrder, sc.Categorical(), sc.IDColumn,
		encoding.WithUnknownHandler(unknown.observe))
	if err != nil {
		return nil, err
	}

	out, err := output.Create(p.cfg.Output.Path, sc.IDColumn, sc.TargetColumn)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := out.Abort(); err != nil {
			p.logger.Warn("failed to discard prediction table", zap.Error(err))
		}
	}()

	p.logger.Info("inference started",
		zap.String("path", p.cfg.Data.TestPath),
		zap.String("output", out.Path()),
		zap.Int("features", vec.Width()))

	err = p.stage(ctx, PipelinePredict, StagePredict, func(ctx context.Context, span *observability.Span) error {
		err := p.predict(ctx, bundle.Model, vec, sc.IDColumn, out)
		span.SetAttribute("tabula.rows", out.Rows())
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, PipelinePredict, StageWrite, func(ctx context.Context, span *observability.Span) error {
		span.SetAttribute("tabula.output", out.Path())
		if err := ctx.Err(); err != nil {
			return dataset.Canceled(err)
		}
		return out.Commit()
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("predictions written",
		zap.String("output", out.Path()),
		zap.Int("rows", out.Rows()),
		zap.Int("unknown_symbols", unknown.distinct()),
		zap.Duration("duration", time.Since(start)))

	return &PredictResult{
		Rows:           out.Rows(),
		OutputPath:     out.Path(),
		UnknownSymbols: unknown.distinct(),
		Fingerprint:    sc.Fingerprint(),
		Duration:       time.Since(start),
	}, nil
}

// predict streams the unlabeled dataset through vec and m into out, one row
// at a time and in input order.
func (p *Predictor) predict(ctx context.Context, m model.Regressor, vec *encoding.Vectorizer, idColumn string, out *output.Writer) error {
	data := p.cfg.Data
	src, err := dataset.Open(ctx, sourceOptions(data, data.TestPath, "", p.logger))
	if err != nil {
		return err
	}
	defer src.Close()

	stream, err := src.Stream(ctx)
	if err != nil {
		return err
	}

	buffers := pool.NewVectorPool(vec.Width())
	rowsRead := p.metrics.RowsRead(PipelinePredict)
	predictions := p.metrics.Predictions()

	return dataset.Drain(ctx, stream, func(rec *dataset.Record) error {
		id, ok := rec.Row.Get(idColumn)
		if !ok || strings.TrimSpace(id) == "" {
			return tabulaerrors.New(tabulaerrors.ErrorTypeSchemaMismatch, "row has no id value").
				WithDetail("id_column", idColumn).
				WithDetail("line", rec.Line)
		}
		rowsRead.Inc()

		buf := buffers.Get()
		defer buffers.Put(buf)

		if err := vec.VectorizeInto(rec.Row, buf.Values); err != nil {
			return atLine(err, rec.Line)
		}
		yhat, err := m.Predict(buf.Values)
		if err != nil {
			return atLine(err, rec.Line)
		}
		if out.Rows() == 0 {
			p.logger.Debug("first row encoded",
				zap.Int("line", rec.Line),
				zap.String("id", id),
				zap.Float64s("vector", buf.Values),
				zap.Float64("prediction", yhat))
		}
		if err := out.Write(id, yhat); err != nil {
			return err
		}
		predictions.Inc()
		return nil
	})
}

// unknownTracker counts out-of-domain symbols and warns once per distinct
// (column, symbol) pair.
type unknownTracker struct {
	logger  *zap.Logger
	metrics *metrics.Collector

	mu   sync.Mutex
	seen map[[2]string]struct{}
}

func newUnknownTracker(logger *zap.Logger, m *metrics.Collector) *unknownTracker {
	return &unknownTracker{logger: logger, metrics: m, seen: make(map[[2]string]struct{})}
}

func (u *unknownTracker) observe(column, symbol string) {
	u.metrics.UnknownCategory(column)

	key := [2]string{column, symbol}
	u.mu.Lock()
	_, dup := u.seen[key]
	if !dup {
		u.seen[key] = struct{}{}
	}
	u.mu.Unlock()

	if !dup {
		u.logger.Warn("unknown categorical symbol encoded as all-zero",
			zap.String("column", column),
			zap.String("symbol", symbol))
	}
}

func (u *unknownTracker) distinct() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.seen)
}
