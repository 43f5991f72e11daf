package pipeline

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/ajitpratap0/tabula/pkg/artifact"
	"github.com/ajitpratap0/tabula/pkg/compression"
	"github.com/ajitpratap0/tabula/pkg/config"
	"github.com/ajitpratap0/tabula/pkg/dataset"
	"github.com/ajitpratap0/tabula/pkg/encoding"
	"github.com/ajitpratap0/tabula/pkg/metrics"
	"github.com/ajitpratap0/tabula/pkg/model"
	"github.com/ajitpratap0/tabula/pkg/observability"
	"github.com/ajitpratap0/tabula/pkg/schema"
	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

// Trainer runs the training pipeline.
type Trainer struct {
	deps
	cfg   *config.Config
	store *artifact.Store
}

// TrainResult summarizes a successful training run.
type TrainResult struct {
	Rows         int
	FeatureOrder []string
	History      *model.History
	ModelDir     string
	SchemaPath   string
	Fingerprint  string
	Duration     time.Duration
}

// trainingSet is the materialized dataset: row i of the row-major features
// belongs to targets[i].
type trainingSet struct {
	order    []string
	features []float64
	targets  []float64
	rows     int
}

func (ts *trainingSet) width() int {
	return len(ts.order)
}

func (ts *trainingSet) row(i int) []float64 {
	return ts.features[i*ts.width() : (i+1)*ts.width()]
}

// NewTrainer validates cfg and prepares a training run.
func NewTrainer(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Trainer, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	d := newDeps(logger, opts)
	return &Trainer{
		deps:  d,
		cfg:   cfg,
		store: artifact.NewStore(cfg.Artifacts, d.logger),
	}, nil
}

// Run trains a model on the configured dataset and commits the artifacts.
// No artifact is written unless every step succeeds.
func (t *Trainer) Run(ctx context.Context) (*TrainResult, error) {
	start := time.Now()
	cat, err := categoricalFromConfig(t.cfg.Encoding)
	if err != nil {
		return nil, err
	}

	t.logger.Info("training started",
		zap.String("path", t.cfg.Data.TrainPath),
		zap.String("target_column", t.cfg.Data.TargetColumn),
		zap.String("categorical_column", t.cfg.Encoding.CategoricalColumn))

	var ts *trainingSet
	err = t.stage(ctx, PipelineTrain, StageRead, func(ctx context.Context, span *observability.Span) error {
		var err error
		ts, err = t.read(ctx, cat)
		if ts != nil {
			span.SetAttribute("tabula.rows", ts.rows)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	var (
		m       *model.LinearRegression
		history *model.History
	)
	err = t.stage(ctx, PipelineTrain, StageFit, func(ctx context.Context, span *observability.Span) error {
		var err error
		m, history, err = t.fit(ctx, ts)
		span.SetAttribute("tabula.epochs", len(history.Epochs))
		return err
	})
	if err != nil {
		return nil, err
	}

	sc := schema.New(ts.order, cat, t.cfg.Data.IDColumn, t.cfg.Data.TargetColumn, time.Now())
	err = t.stage(ctx, PipelineTrain, StagePersist, func(ctx context.Context, span *observability.Span) error {
		span.SetAttribute("tabula.model_dir", t.store.ModelDir())
		span.SetAttribute("tabula.schema_fingerprint", sc.Fingerprint())
		// a run canceled during the fit must not replace the previous pair
		if err := ctx.Err(); err != nil {
			return dataset.Canceled(err)
		}
		return t.store.Commit(m, sc)
	})
	if err != nil {
		return nil, err
	}

	final := history.Final()
	fields := []zap.Field{
		zap.Int("rows", ts.rows),
		zap.Int("train_rows", history.TrainRows),
		zap.Int("validation_rows", history.ValidationRows),
		zap.Float64("loss", final.Loss),
		zap.Float64("mae", final.MAE),
	}
	if final.HasValidation {
		fields = append(fields, zap.Float64("val_loss", final.ValLoss), zap.Float64("val_mae", final.ValMAE))
	}
	fields = append(fields, zap.Duration("duration", time.Since(start)))
	t.logger.Info("training completed", fields...)

	return &TrainResult{
		Rows:         ts.rows,
		FeatureOrder: ts.order,
		History:      history,
		ModelDir:     t.store.ModelDir(),
		SchemaPath:   t.store.SchemaPath(),
		Fingerprint:  sc.Fingerprint(),
		Duration:     time.Since(start),
	}, nil
}

// read streams the training dataset into memory. The feature order and the
// field set every later row must match are taken from the first row.
func (t *Trainer) read(ctx context.Context, cat *encoding.Categorical) (*trainingSet, error) {
	data := t.cfg.Data
	src, err := dataset.Open(ctx, sourceOptions(data, data.TrainPath, data.TargetColumn, t.logger))
	if err != nil {
		return nil, err
	}
	defer src.Close()

	stream, err := src.Stream(ctx)
	if err != nil {
		return nil, err
	}

	rowsRead := t.metrics.RowsRead(PipelineTrain)
	ts := &trainingSet{}
	var (
		vec    *encoding.Vectorizer
		fields []string
	)
	err = dataset.Drain(ctx, stream, func(rec *dataset.Record) error {
		if vec == nil {
			enriched, err := encoding.Enrich(rec.Row, cat, data.IDColumn)
			if err != nil {
				return atLine(err, rec.Line)
			}
			if vec, err = encoding.NewVectorizer(enriched.Names(), cat, data.IDColumn); err != nil {
				return atLine(err, rec.Line)
			}
			ts.order = vec.Order()
			fields = featureColumns(rec.Row, data.IDColumn)
		} else if got := featureColumns(rec.Row, data.IDColumn); !schema.SameFields(fields, got) {
			return tabulaerrors.New(tabulaerrors.ErrorTypeSchemaMismatch, "row fields differ from the first row").
				WithDetail("line", rec.Line).
				WithDetail("changes", schema.CompareFields(fields, got))
		}

		n := len(ts.features)
		ts.features = slices.Grow(ts.features, vec.Width())[:n+vec.Width()]
		if err := vec.VectorizeInto(rec.Row, ts.features[n:]); err != nil {
			return atLine(err, rec.Line)
		}
		ts.targets = append(ts.targets, rec.Target)
		ts.rows++
		rowsRead.Inc()

		if ts.rows == 1 {
			t.logger.Debug("first row encoded",
				zap.Int("line", rec.Line),
				zap.Strings("feature_order", ts.order),
				zap.Float64s("vector", ts.row(0)),
				zap.Float64("target", rec.Target))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if ts.rows == 0 {
		return nil, tabulaerrors.New(tabulaerrors.ErrorTypeEmptyDataset, "training dataset has no rows").
			WithDetail("path", data.TrainPath)
	}
	t.logger.Info("training data loaded",
		zap.Int("rows", ts.rows),
		zap.Int("features", ts.width()))
	return ts, nil
}

// fit trains a fresh model on ts and logs a sanity prediction for the first
// row.
func (t *Trainer) fit(ctx context.Context, ts *trainingSet) (*model.LinearRegression, *model.History, error) {
	alg, err := compression.ParseAlgorithm(t.cfg.Artifacts.Compression)
	if err != nil {
		return nil, &model.History{}, tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeConfig, "invalid artifacts.compression")
	}
	m, err := model.NewLinearRegression(ts.width(),
		model.WithSeed(t.cfg.Training.Seed),
		model.WithCompression(alg))
	if err != nil {
		return nil, &model.History{}, err
	}

	summary := m.Summary()
	t.logger.Info("model summary",
		zap.String("class", summary.Class),
		zap.Int("input_dim", summary.InputDim),
		zap.Int("units", summary.Units),
		zap.Int("params", summary.Params))

	tc := t.cfg.Training
	history, err := m.Fit(ctx, mat.NewDense(ts.rows, ts.width(), ts.features), ts.targets, model.FitOptions{
		Epochs:          tc.Epochs,
		BatchSize:       tc.BatchSize,
		Shuffle:         tc.Shuffle,
		ValidationSplit: tc.ValidationSplit,
		LearningRate:    tc.LearningRate,
		Seed:            tc.Seed,
		OnEpoch:         t.onEpoch,
	})
	if history == nil {
		history = &model.History{}
	}
	if err != nil {
		return nil, history, err
	}

	yhat, err := m.Predict(ts.row(0))
	if err != nil {
		return nil, history, err
	}
	t.logger.Info("sanity prediction on first row",
		zap.Float64("prediction", yhat),
		zap.Float64("target", ts.targets[0]))
	return m, history, nil
}

func (t *Trainer) onEpoch(em model.EpochMetrics) {
	t.metrics.RecordEpoch(metrics.SplitTrain, em.Loss, em.MAE)
	fields := []zap.Field{
		zap.Int("epoch", em.Epoch),
		zap.Int("epochs", t.cfg.Training.Epochs),
		zap.Float64("loss", em.Loss),
		zap.Float64("mae", em.MAE),
	}
	if em.HasValidation {
		t.metrics.RecordEpoch(metrics.SplitValidation, em.ValLoss, em.ValMAE)
		fields = append(fields, zap.Float64("val_loss", em.ValLoss), zap.Float64("val_mae", em.ValMAE))
	}
	t.logger.Info("epoch completed", fields...)
}

// featureColumns lists the columns of row that feed the enriched field set.
func featureColumns(row dataset.Row, idColumn string) []string {
	cols := row.Columns()
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c != idColumn {
			out = append(out, c)
		}
	}
	return out
}
