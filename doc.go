// Package tabula trains a regression model on a labeled CSV dataset and
// applies it to unlabeled rows with exactly the feature encoding used at
// training time.
//
// A training run streams the labeled dataset, expands the categorical column
// into one-hot indicator columns, fixes the feature order from the first row,
// fits a single-unit linear model with Adam on mean squared error and commits
// two artifacts together: the model directory and the schema file holding the
// feature order and categorical mapping. An inference run loads both, encodes
// every unlabeled row in the stored order and writes an id,<target> table in
// input order.
//
// # Quick Start
//
//	tabula config init tabula.yaml
//	tabula train --config tabula.yaml --train data/train.csv
//	tabula predict --config tabula.yaml --test data/test.csv -o predictions.csv
//	tabula schema show --config tabula.yaml
//
// The command line is the entry point. The packages under pkg/ hold the
// building blocks a run is made of and can be imported on their own.
//
// # Key Packages
//
//	pkg/dataset       - CSV row stream with header handling and cancellation
//	pkg/encoding      - categorical one-hot mapping and the row vectorizer
//	pkg/schema        - feature order contract, fingerprint and field diffs
//	pkg/model         - linear regression, training history, persistence
//	pkg/artifact      - paired commit and load of model and schema
//	pkg/output        - prediction table writer
//	pkg/config        - YAML configuration with ${VAR} substitution
//	pkg/tabulaerrors  - typed errors shared by every run
//	pkg/logger        - zap logging
//	pkg/metrics       - Prometheus collector and textfile sink
//	pkg/observability - OpenTelemetry stage spans
//
// # Configuration
//
// Configuration is layered: defaults, then the YAML file, then TABULA_*
// environment variables (for example TABULA_TRAINING_EPOCHS), then flags.
//
//	type Config struct {
//	    Data          DataConfig          // paths, delimiter, id and target columns
//	    Encoding      EncodingConfig      // categorical column and its domain
//	    Artifacts     ArtifactsConfig     // model dir, schema file, compression
//	    Training      TrainingConfig      // epochs, batch size, learning rate, split
//	    Output        OutputConfig        // prediction table path
//	    Logging       LoggingConfig
//	    Observability ObservabilityConfig // metrics textfile, tracing
//	}
//
// Inputs and the prediction table may be compressed; the codec is picked from
// the file extension (.gz, .zst, .lz4, .sz, .s2).
package tabula
