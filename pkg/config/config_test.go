package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

func TestNewDefault_IsValid(t *testing.T) {
	cfg := NewDefault()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Rings", cfg.Data.TargetColumn)
	assert.Equal(t, "id", cfg.Data.IDColumn)
	assert.Equal(t, []string{"M", "F", "I"}, cfg.Encoding.Categories)
	assert.Equal(t, 10, cfg.Training.Epochs)
	assert.Equal(t, 32, cfg.Training.BatchSize)
	assert.InDelta(t, 0.1, cfg.Training.ValidationSplit, 1e-12)
	assert.Equal(t, ',', cfg.Data.DelimiterRune())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing id", func(c *Config) { c.Data.IDColumn = "" }},
		{"missing target", func(c *Config) { c.Data.TargetColumn = "" }},
		{"id equals target", func(c *Config) { c.Data.TargetColumn = "id" }},
		{"long delimiter", func(c *Config) { c.Data.Delimiter = ";;" }},
		{"negative prefetch", func(c *Config) { c.Data.Prefetch = -1 }},
		{"categorical is target", func(c *Config) { c.Encoding.CategoricalColumn = "Rings" }},
		{"empty domain", func(c *Config) { c.Encoding.Categories = nil }},
		{"duplicate symbol", func(c *Config) { c.Encoding.Categories = []string{"M", "M"} }},
		{"empty symbol", func(c *Config) { c.Encoding.Categories = []string{"M", ""} }},
		{"domain without column", func(c *Config) { c.Encoding.CategoricalColumn = "" }},
		{"model name with path", func(c *Config) { c.Artifacts.ModelName = "a/b" }},
		{"unknown compression", func(c *Config) { c.Artifacts.Compression = "brotli" }},
		{"zero epochs", func(c *Config) { c.Training.Epochs = 0 }},
		{"zero batch", func(c *Config) { c.Training.BatchSize = 0 }},
		{"zero learning rate", func(c *Config) { c.Training.LearningRate = 0 }},
		{"split of one", func(c *Config) { c.Training.ValidationSplit = 1 }},
		{"negative split", func(c *Config) { c.Training.ValidationSplit = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, tabulaerrors.IsType(err, tabulaerrors.ErrorTypeConfig))
		})
	}
}

func TestValidate_NoCategoricalColumn(t *testing.T) {
	cfg := NewDefault()
	cfg.Encoding = EncodingConfig{}
	assert.NoError(t, cfg.Validate())
}

func TestLoad_OverridesDefaultsAndSubstitutesEnv(t *testing.T) {
	t.Setenv("TABULA_TEST_DATA", "/data")

	path := filepath.Join(t.TempDir(), "tabula.yaml")
	content := `
data:
  train_path: ${TABULA_TEST_DATA}/train.csv
  target_column: Age
training:
  epochs: 3
encoding:
  categories: [A, B]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := NewDefault()
	require.NoError(t, Load(path, cfg))

	assert.Equal(t, "/data/train.csv", cfg.Data.TrainPath)
	assert.Equal(t, "Age", cfg.Data.TargetColumn)
	assert.Equal(t, 3, cfg.Training.Epochs)
	assert.Equal(t, []string{"A", "B"}, cfg.Encoding.Categories)
	// untouched keys keep their defaults
	assert.Equal(t, 32, cfg.Training.BatchSize)
	assert.Equal(t, "Sex", cfg.Encoding.CategoricalColumn)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabula.yaml")
	want := NewDefault()
	want.Training.Seed = 42

	require.NoError(t, Save(path, want))

	got := &Config{}
	require.NoError(t, Load(path, got))
	assert.Equal(t, want, got)
}

func TestLoad_MissingFile(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "nope.yaml"), NewDefault())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("A_VAR", "x")
	assert.Equal(t, "x-y-", substituteEnvVars("${A_VAR}-y-${UNSET_TABULA_VAR}"))
	assert.Equal(t, "no vars", substituteEnvVars("no vars"))
	assert.Equal(t, "open ${brace", substituteEnvVars("open ${brace"))
}
