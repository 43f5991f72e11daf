// Package model provides the regression model capability used by the
// pipelines: fit on a feature matrix, predict one vector at a time, and
// persist to a model directory.
//
// # Overview
//
// The pipelines depend only on the Regressor interface. The one
// implementation, LinearRegression, is a single dense unit with bias trained
// by mini-batch Adam on mean squared error.
//
// A model directory contains:
//   - model.json: format version, architecture, weights manifest, training
//     options and the fingerprint of the schema the model was trained against
//   - weights.bin: little-endian float64 kernel followed by the bias, compressed
//
// # Basic Usage
//
//	m, err := model.NewLinearRegression(len(featureOrder), model.WithSeed(42))
//	history, err := m.Fit(ctx, X, y, model.FitOptions{Epochs: 10, BatchSize: 32, LearningRate: 0.01})
//	if err := m.Save(dir); err != nil {
//	    return err
//	}
//
//	loaded, err := model.Load(dir)
//	yhat, err := loaded.Predict(vector)
package model

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

// Regressor is a trainable, persistable single-output model.
type Regressor interface {
	// Fit trains on the rows of X against y.
	Fit(ctx context.Context, X *mat.Dense, y []float64, opts FitOptions) (*History, error)
	// Predict returns the prediction for one feature vector.
	Predict(x []float64) (float64, error)
	// InputDim returns the expected feature vector length.
	InputDim() int
	// Summary describes the architecture.
	Summary() Summary
	// Save writes the model into dir, creating it if necessary.
	Save(dir string) error
	// BindSchema records the fingerprint of the schema the model was
	// trained against. Save persists it.
	BindSchema(fingerprint string)
	// SchemaFingerprint returns the bound schema fingerprint, empty if none.
	SchemaFingerprint() string
}

// FitOptions are the training options of a fit.
type FitOptions struct {
	Epochs          int     `json:"epochs"`
	BatchSize       int     `json:"batchSize"`
	Shuffle         bool    `json:"shuffle"`
	ValidationSplit float64 `json:"validationSplit"`
	LearningRate    float64 `json:"learningRate"`
	// Seed drives the validation split and batch shuffling; 0 picks a random seed
	Seed uint64 `json:"seed"`

	// OnEpoch is called after every epoch
	OnEpoch func(EpochMetrics) `json:"-"`
}

// Validate checks the option ranges.
func (o FitOptions) Validate() error {
	switch {
	case o.Epochs <= 0:
		return tabulaerrors.New(tabulaerrors.ErrorTypeConfig, "epochs must be positive")
	case o.BatchSize <= 0:
		return tabulaerrors.New(tabulaerrors.ErrorTypeConfig, "batch size must be positive")
	case o.LearningRate <= 0:
		return tabulaerrors.New(tabulaerrors.ErrorTypeConfig, "learning rate must be positive")
	case o.ValidationSplit < 0 || o.ValidationSplit >= 1:
		return tabulaerrors.New(tabulaerrors.ErrorTypeConfig, "validation split must be in [0, 1)")
	}
	return nil
}

// EpochMetrics are the losses of one epoch. Validation values are only
// meaningful when HasValidation is set.
type EpochMetrics struct {
	Epoch         int     `json:"epoch"`
	Loss          float64 `json:"loss"`
	MAE           float64 `json:"mae"`
	ValLoss       float64 `json:"valLoss,omitempty"`
	ValMAE        float64 `json:"valMae,omitempty"`
	HasValidation bool    `json:"hasValidation"`
}

// History is the per-epoch record of a fit.
type History struct {
	Epochs         []EpochMetrics `json:"epochs"`
	TrainRows      int            `json:"trainRows"`
	ValidationRows int            `json:"validationRows"`
}

// Final returns the metrics of the last epoch.
func (h *History) Final() EpochMetrics {
	if h == nil || len(h.Epochs) == 0 {
		return EpochMetrics{}
	}
	return h.Epochs[len(h.Epochs)-1]
}

// Summary describes a model architecture.
type Summary struct {
	Class    string `json:"class"`
	InputDim int    `json:"inputDim"`
	Units    int    `json:"units"`
	UseBias  bool   `json:"useBias"`
	Params   int    `json:"params"`
}
