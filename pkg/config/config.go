// Package config provides the run configuration for tabula.
// A single Config structure is built once by the entry point and passed into
// each pipeline; nothing in the core reads process-wide state.
//
// The configuration is organized into logical sections:
//   - Data: dataset locations and the reserved id/target columns
//   - Encoding: the categorical column and its fixed symbol domain
//   - Artifacts: where the model and schema artifacts live
//   - Training: fit options (epochs, batch size, validation split, ...)
//   - Output: where the prediction table is written
//   - Logging and Observability: log level, metrics sink, tracing
//
// Example usage:
//
//	cfg := config.NewDefault()
//	cfg.Training.Epochs = 50
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"path/filepath"

	"github.com/ajitpratap0/tabula/pkg/compression"
	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

// Config is the complete configuration of a train or predict run.
type Config struct {
	Data          DataConfig          `yaml:"data" json:"data"`
	Encoding      EncodingConfig      `yaml:"encoding" json:"encoding"`
	Artifacts     ArtifactsConfig     `yaml:"artifacts" json:"artifacts"`
	Training      TrainingConfig      `yaml:"training" json:"training"`
	Output        OutputConfig        `yaml:"output" json:"output"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// DataConfig locates the datasets and names the reserved columns.
type DataConfig struct {
	// TrainPath is the labeled dataset read by `train`
	TrainPath string `yaml:"train_path" json:"train_path"`
	// TestPath is the unlabeled dataset read by `predict`
	TestPath string `yaml:"test_path" json:"test_path"`
	// HasHeader reports whether the first line holds column names
	HasHeader bool `yaml:"has_header" json:"has_header"`
	// Delimiter is the field separator (default ",")
	Delimiter string `yaml:"delimiter" json:"delimiter"`
	// IDColumn identifies a row and is never a feature
	IDColumn string `yaml:"id_column" json:"id_column"`
	// TargetColumn is the label of labeled rows and is never a feature
	TargetColumn string `yaml:"target_column" json:"target_column"`
	// Prefetch is the number of rows read ahead of the consumer
	Prefetch int `yaml:"prefetch" json:"prefetch"`
}

// EncodingConfig fixes the categorical domain before any row is read.
type EncodingConfig struct {
	// CategoricalColumn is one-hot encoded; empty disables one-hot encoding
	CategoricalColumn string `yaml:"categorical_column" json:"categorical_column"`
	// Categories is the ordered symbol domain; position is the slot index
	Categories []string `yaml:"categories" json:"categories"`
}

// ArtifactsConfig locates the model and schema artifacts.
type ArtifactsConfig struct {
	Dir        string `yaml:"dir" json:"dir"`
	ModelName  string `yaml:"model_name" json:"model_name"`
	SchemaFile string `yaml:"schema_file" json:"schema_file"`
	// Compression is the codec of the model weights blob
	Compression string `yaml:"compression" json:"compression"`
}

// TrainingConfig holds the fixed fit options.
type TrainingConfig struct {
	Epochs          int     `yaml:"epochs" json:"epochs"`
	BatchSize       int     `yaml:"batch_size" json:"batch_size"`
	LearningRate    float64 `yaml:"learning_rate" json:"learning_rate"`
	ValidationSplit float64 `yaml:"validation_split" json:"validation_split"`
	Shuffle         bool    `yaml:"shuffle" json:"shuffle"`
	// Seed drives weight init and shuffling; 0 picks a random seed
	Seed uint64 `yaml:"seed" json:"seed"`
}

// OutputConfig locates the prediction table.
type OutputConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`       // debug, info, warn, error
	Encoding    string `yaml:"encoding" json:"encoding"` // json, console
	Development bool   `yaml:"development" json:"development"`
}

// ObservabilityConfig holds the monitoring sinks.
type ObservabilityConfig struct {
	// MetricsPath receives a Prometheus textfile at the end of a run; empty disables it
	MetricsPath string `yaml:"metrics_path" json:"metrics_path"`
	// Tracing exports pipeline stage spans to stderr
	Tracing bool `yaml:"tracing" json:"tracing"`
}

// NewDefault returns the configuration of the reference abalone run.
func NewDefault() *Config {
	return &Config{
		Data: DataConfig{
			TrainPath:    filepath.Join("..", "data", "train.csv"),
			TestPath:     filepath.Join("..", "data", "test.csv"),
			HasHeader:    true,
			Delimiter:    ",",
			IDColumn:     "id",
			TargetColumn: "Rings",
			Prefetch:     1,
		},
		Encoding: EncodingConfig{
			CategoricalColumn: "Sex",
			Categories:        []string{"M", "F", "I"},
		},
		Artifacts: ArtifactsConfig{
			Dir:         filepath.Join("..", "artifacts"),
			ModelName:   "abalone-linear-regression",
			SchemaFile:  "metadata.json",
			Compression: string(compression.Zstd),
		},
		Training: TrainingConfig{
			Epochs:          10,
			BatchSize:       32,
			LearningRate:    0.01,
			ValidationSplit: 0.1,
			Shuffle:         true,
		},
		Output: OutputConfig{
			Path: "predictions.csv",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Data.IDColumn == "" {
		return configError("data.id_column is required")
	}
	if c.Data.TargetColumn == "" {
		return configError("data.target_column is required")
	}
	if c.Data.IDColumn == c.Data.TargetColumn {
		return configError("data.id_column and data.target_column must differ")
	}
	if len([]rune(c.Data.Delimiter)) > 1 {
		return configError("data.delimiter must be a single character")
	}
	if c.Data.Prefetch < 0 {
		return configError("data.prefetch cannot be negative")
	}

	if err := c.Encoding.validate(c.Data); err != nil {
		return err
	}

	if c.Artifacts.Dir == "" || c.Artifacts.ModelName == "" || c.Artifacts.SchemaFile == "" {
		return configError("artifacts.dir, artifacts.model_name and artifacts.schema_file are required")
	}
	if filepath.Base(c.Artifacts.ModelName) != c.Artifacts.ModelName {
		return configError("artifacts.model_name must be a plain directory name")
	}
	if filepath.Base(c.Artifacts.SchemaFile) != c.Artifacts.SchemaFile {
		return configError("artifacts.schema_file must be a plain file name")
	}
	if _, err := compression.ParseAlgorithm(c.Artifacts.Compression); err != nil {
		return tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeConfig, "invalid artifacts.compression")
	}

	if c.Training.Epochs <= 0 {
		return configError("training.epochs must be positive")
	}
	if c.Training.BatchSize <= 0 {
		return configError("training.batch_size must be positive")
	}
	if c.Training.LearningRate <= 0 {
		return configError("training.learning_rate must be positive")
	}
	if c.Training.ValidationSplit < 0 || c.Training.ValidationSplit >= 1 {
		return configError("training.validation_split must be in [0, 1)")
	}

	return nil
}

func (e *EncodingConfig) validate(data DataConfig) error {
	if e.CategoricalColumn == "" {
		if len(e.Categories) > 0 {
			return configError("encoding.categories requires encoding.categorical_column")
		}
		return nil
	}
	if e.CategoricalColumn == data.IDColumn || e.CategoricalColumn == data.TargetColumn {
		return configError("encoding.categorical_column cannot be the id or target column")
	}
	if len(e.Categories) == 0 {
		return configError("encoding.categories must not be empty")
	}
	seen := make(map[string]struct{}, len(e.Categories))
	for _, c := range e.Categories {
		if c == "" {
			return configError("encoding.categories cannot contain an empty symbol")
		}
		if _, dup := seen[c]; dup {
			return tabulaerrors.New(tabulaerrors.ErrorTypeConfig, "encoding.categories contains a duplicate symbol").
				WithDetail("symbol", c)
		}
		seen[c] = struct{}{}
	}
	return nil
}

// DelimiterRune returns the configured delimiter, defaulting to a comma.
func (d DataConfig) DelimiterRune() rune {
	for _, r := range d.Delimiter {
		return r
	}
	return ','
}

func configError(msg string) error {
	return tabulaerrors.New(tabulaerrors.ErrorTypeConfig, msg)
}
