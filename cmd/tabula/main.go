package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/tabula/pkg/artifact"
	"github.com/ajitpratap0/tabula/pkg/config"
	"github.com/ajitpratap0/tabula/pkg/fsutil"
	"github.com/ajitpratap0/tabula/pkg/json"
	"github.com/ajitpratap0/tabula/pkg/schema"
	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// cancellation is observed between rows, so no artifact is half written
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if tabulaerrors.IsFatal(err) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := newViper()

	root := &cobra.Command{
		Use:   "tabula",
		Short: "Tabula - tabular regression with reproducible feature encoding",
		Long: `Tabula trains a regression model on a labeled CSV dataset and applies it to
unlabeled rows. The feature order and categorical mapping fixed at training
time are stored next to the model, so inference encodes rows exactly as
training did.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Path to a YAML configuration file")
	pf.String("artifacts-dir", "", "Directory holding the model and schema artifacts")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("metrics-path", "", "Write a Prometheus textfile here at the end of the run")
	pf.Bool("tracing", false, "Print pipeline stage spans to stderr")
	mustBind(v, "config", pf.Lookup("config"))
	mustBind(v, "artifacts.dir", pf.Lookup("artifacts-dir"))
	mustBind(v, "logging.level", pf.Lookup("log-level"))
	mustBind(v, "observability.metrics_path", pf.Lookup("metrics-path"))
	mustBind(v, "observability.tracing", pf.Lookup("tracing"))

	root.AddCommand(
		newTrainCmd(v),
		newPredictCmd(v),
		newSchemaCmd(v),
		newConfigCmd(v),
		newVersionCmd(),
	)
	return root
}

func newTrainCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model and write the model and schema artifacts",
		Long: `Train streams the labeled dataset, fixes the feature order from its first
row, fits the model and commits the model directory and schema file together.

Example:
  tabula train --config tabula.yaml --epochs 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return runTrain(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.String("train", "", "Path to the labeled training CSV")
	f.Int("epochs", 0, "Number of training epochs")
	f.Int("batch-size", 0, "Mini-batch size")
	f.Float64("learning-rate", 0, "Adam learning rate")
	f.Float64("validation-split", 0, "Fraction of rows held out for validation")
	f.Uint64("seed", 0, "Seed for weight init and shuffling (0 picks one)")
	mustBind(v, "data.train_path", f.Lookup("train"))
	mustBind(v, "training.epochs", f.Lookup("epochs"))
	mustBind(v, "training.batch_size", f.Lookup("batch-size"))
	mustBind(v, "training.learning_rate", f.Lookup("learning-rate"))
	mustBind(v, "training.validation_split", f.Lookup("validation-split"))
	mustBind(v, "training.seed", f.Lookup("seed"))
	return cmd
}

func newPredictCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict every row of an unlabeled dataset",
		Long: `Predict loads the model and schema artifacts, encodes every row of the
unlabeled dataset with the stored feature order and writes an id,<target>
table in input order. Nothing is written if any row fails.

Example:
  tabula predict --test data/test.csv --output predictions.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return runPredict(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.String("test", "", "Path to the unlabeled CSV")
	f.StringP("output", "o", "", "Path of the prediction table")
	mustBind(v, "data.test_path", f.Lookup("test"))
	mustBind(v, "output.path", f.Lookup("output"))
	return cmd
}

func newSchemaCmd(v *viper.Viper) *cobra.Command {
	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the schema artifact",
	}
	schemaCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored schema as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			store := artifact.NewStore(cfg.Artifacts, nil)
			sc, err := schema.Load(store.SchemaPath())
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(sc)
			if err != nil {
				return tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeInternal, "failed to encode schema")
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			fmt.Fprintf(cmd.ErrOrStderr(), "fingerprint: %s\n", sc.Fingerprint())
			return nil
		},
	})
	return schemaCmd
}

func newConfigCmd(v *viper.Viper) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "tabula.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			exists, err := fsutil.Exists(path)
			if err != nil {
				return tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeConfig, "failed to stat configuration file")
			}
			if exists && !force {
				return tabulaerrors.New(tabulaerrors.ErrorTypeConfig, "configuration file already exists, use --force to overwrite").
					WithDetail("path", path)
			}
			if err := config.Save(path, config.NewDefault()); err != nil {
				return tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeConfig, "failed to write configuration")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(initCmd, &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after files, environment and flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg)
			if err != nil {
				return tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeInternal, "failed to encode configuration")
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})
	return configCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tabula v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// mustBind binds a flag to a configuration key. Binding only fails for a
// nil flag, which is a programming error.
func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}
