package main

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tabula/internal/pipeline"
	"github.com/ajitpratap0/tabula/pkg/config"
	"github.com/ajitpratap0/tabula/pkg/logger"
	"github.com/ajitpratap0/tabula/pkg/metrics"
	"github.com/ajitpratap0/tabula/pkg/observability"
	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

const envPrefix = "TABULA"

// newViper reads overrides from flags and TABULA_<SECTION>_<KEY> variables,
// e.g. TABULA_TRAINING_EPOCHS.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig layers the YAML file (if any), then environment variables and
// flags, over the defaults.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg := config.NewDefault()
	if path := v.GetString("config"); path != "" {
		if err := config.Load(path, cfg); err != nil {
			return nil, tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeConfig, "failed to load configuration").
				WithDetail("path", path)
		}
	}
	applyOverrides(v, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(v *viper.Viper, cfg *config.Config) {
	strs := map[string]*string{
		"data.train_path":             &cfg.Data.TrainPath,
		"data.test_path":              &cfg.Data.TestPath,
		"data.delimiter":              &cfg.Data.Delimiter,
		"data.id_column":              &cfg.Data.IDColumn,
		"data.target_column":          &cfg.Data.TargetColumn,
		"encoding.categorical_column": &cfg.Encoding.CategoricalColumn,
		"artifacts.dir":               &cfg.Artifacts.Dir,
		"artifacts.model_name":        &cfg.Artifacts.ModelName,
		"artifacts.schema_file":       &cfg.Artifacts.SchemaFile,
		"artifacts.compression":       &cfg.Artifacts.Compression,
		"output.path":                 &cfg.Output.Path,
		"logging.level":               &cfg.Logging.Level,
		"logging.encoding":            &cfg.Logging.Encoding,
		"observability.metrics_path":  &cfg.Observability.MetricsPath,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	ints := map[string]*int{
		"data.prefetch":       &cfg.Data.Prefetch,
		"training.epochs":     &cfg.Training.Epochs,
		"training.batch_size": &cfg.Training.BatchSize,
	}
	for key, dst := range ints {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	floats := map[string]*float64{
		"training.learning_rate":    &cfg.Training.LearningRate,
		"training.validation_split": &cfg.Training.ValidationSplit,
	}
	for key, dst := range floats {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}

	bools := map[string]*bool{
		"data.has_header":       &cfg.Data.HasHeader,
		"training.shuffle":      &cfg.Training.Shuffle,
		"logging.development":   &cfg.Logging.Development,
		"observability.tracing": &cfg.Observability.Tracing,
	}
	for key, dst := range bools {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	if v.IsSet("training.seed") {
		cfg.Training.Seed = v.GetUint64("training.seed")
	}
	if v.IsSet("encoding.categories") {
		cfg.Encoding.Categories = v.GetStringSlice("encoding.categories")
	}
}

// run holds the process-level collaborators of one command.
type run struct {
	ctx       context.Context
	log       *zap.Logger
	collector *metrics.Collector
	tracing   *observability.Tracing
	cfg       *config.Config
}

func startRun(ctx context.Context, cfg *config.Config, name string) (*run, error) {
	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Encoding:    cfg.Logging.Encoding,
		Development: cfg.Logging.Development,
	}); err != nil {
		return nil, tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeConfig, "failed to initialize logger")
	}

	tracing, err := observability.InitTracing(observability.TracingConfig{
		Enabled:        cfg.Observability.Tracing,
		ServiceName:    "tabula",
		ServiceVersion: version,
		Writer:         os.Stderr,
	})
	if err != nil {
		return nil, tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeConfig, "failed to initialize tracing")
	}

	runID := strconv.FormatInt(time.Now().UnixNano(), 36)
	ctx = logger.ContextWithRun(ctx, runID, name)
	return &run{
		ctx:       ctx,
		log:       logger.WithContext(ctx),
		collector: metrics.NewCollector(),
		tracing:   tracing,
		cfg:       cfg,
	}, nil
}

func (r *run) options() []pipeline.Option {
	return []pipeline.Option{
		pipeline.WithMetrics(r.collector),
		pipeline.WithTracer(r.tracing.Tracer()),
	}
}

// finish flushes the sinks. Sink failures are logged and never mask the
// result of the run.
func (r *run) finish() {
	if path := r.cfg.Observability.MetricsPath; path != "" {
		if err := r.collector.WriteTextfile(path); err != nil {
			r.log.Warn("failed to write metrics", zap.String("path", path), zap.Error(err))
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.tracing.Shutdown(shutdownCtx); err != nil {
		r.log.Warn("failed to shut down tracing", zap.Error(err))
	}
	_ = logger.Sync()
}

func runTrain(ctx context.Context, cfg *config.Config) error {
	r, err := startRun(ctx, cfg, pipeline.PipelineTrain)
	if err != nil {
		return err
	}
	defer r.finish()

	trainer, err := pipeline.NewTrainer(cfg, r.log, r.options()...)
	if err != nil {
		return err
	}
	result, err := trainer.Run(r.ctx)
	if err != nil {
		r.log.Error("training failed", zap.String("error_type", string(tabulaerrors.TypeOf(err))), zap.Error(err))
		return err
	}

	final := result.History.Final()
	r.log.Info("artifacts ready",
		zap.String("model_dir", result.ModelDir),
		zap.String("schema_path", result.SchemaPath),
		zap.String("schema_fingerprint", result.Fingerprint),
		zap.Float64("final_loss", final.Loss),
		zap.Float64("final_val_loss", final.ValLoss))
	return nil
}

func runPredict(ctx context.Context, cfg *config.Config) error {
	r, err := startRun(ctx, cfg, pipeline.PipelinePredict)
	if err != nil {
		return err
	}
	defer r.finish()

	predictor, err := pipeline.NewPredictor(cfg, r.log, r.options()...)
	if err != nil {
		return err
	}
	result, err := predictor.Run(r.ctx)
	if err != nil {
		r.log.Error("inference failed", zap.String("error_type", string(tabulaerrors.TypeOf(err))), zap.Error(err))
		return err
	}

	r.log.Info("prediction table ready",
		zap.String("output", result.OutputPath),
		zap.Int("rows", result.Rows),
		zap.String("schema_fingerprint", result.Fingerprint))
	return nil
}
