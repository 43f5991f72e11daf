package model

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ajitpratap0/tabula/pkg/compression"
	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

// ClassLinearRegression is the architecture class written to model.json.
const ClassLinearRegression = "LinearRegression"

// Adam hyperparameters.
const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
)

// LinearRegression is one dense unit with bias: yhat = kernel·x + bias.
type LinearRegression struct {
	inputDim    int
	kernel      *mat.VecDense
	bias        float64
	compression compression.Algorithm

	// set by Fit, persisted for provenance
	trained *FitOptions
	schema  string
}

// LinearOption configures a LinearRegression.
type LinearOption func(*linearOptions)

type linearOptions struct {
	seed        uint64
	compression compression.Algorithm
}

// WithSeed seeds the kernel initializer. 0 picks a random seed.
func WithSeed(seed uint64) LinearOption {
	return func(o *linearOptions) { o.seed = seed }
}

// WithCompression sets the codec of the persisted weights blob.
func WithCompression(alg compression.Algorithm) LinearOption {
	return func(o *linearOptions) { o.compression = alg }
}

// NewLinearRegression creates a model for vectors of length inputDim with a
// Glorot-uniform kernel and a zero bias.
func NewLinearRegression(inputDim int, opts ...LinearOption) (*LinearRegression, error) {
	if inputDim <= 0 {
		return nil, tabulaerrors.New(tabulaerrors.ErrorTypeConfig, "input dimension must be positive").
			WithDetail("input_dim", inputDim)
	}
	o := linearOptions{compression: compression.Zstd}
	for _, opt := range opts {
		opt(&o)
	}

	rng := newRNG(o.seed)
	// fan_in = inputDim, fan_out = 1
	limit := math.Sqrt(6 / float64(inputDim+1))
	kernel := make([]float64, inputDim)
	for i := range kernel {
		kernel[i] = (rng.Float64()*2 - 1) * limit
	}

	return &LinearRegression{
		inputDim:    inputDim,
		kernel:      mat.NewVecDense(inputDim, kernel),
		compression: o.compression,
	}, nil
}

// InputDim returns the expected feature vector length.
func (m *LinearRegression) InputDim() int {
	return m.inputDim
}

// BindSchema records the schema fingerprint written to model.json.
func (m *LinearRegression) BindSchema(fingerprint string) {
	m.schema = fingerprint
}

// SchemaFingerprint returns the bound schema fingerprint.
func (m *LinearRegression) SchemaFingerprint() string {
	return m.schema
}

// Summary describes the architecture.
func (m *LinearRegression) Summary() Summary {
	return Summary{
		Class:    ClassLinearRegression,
		InputDim: m.inputDim,
		Units:    1,
		UseBias:  true,
		Params:   m.inputDim + 1,
	}
}

// Kernel returns a copy of the weights.
func (m *LinearRegression) Kernel() []float64 {
	return append([]float64(nil), m.kernel.RawVector().Data...)
}

// Bias returns the bias term.
func (m *LinearRegression) Bias() float64 {
	return m.bias
}

// Predict returns kernel·x + bias.
func (m *LinearRegression) Predict(x []float64) (float64, error) {
	if len(x) != m.inputDim {
		return 0, tabulaerrors.New(tabulaerrors.ErrorTypeConfig, "vector length does not match model input dimension").
			WithDetail("vector_length", len(x)).
			WithDetail("input_dim", m.inputDim)
	}
	return floats.Dot(m.kernel.RawVector().Data, x) + m.bias, nil
}

// Fit trains with mini-batch Adam on mean squared error. Rows are shuffled
// once and the trailing ValidationSplit fraction is held out; training
// batches are reshuffled every epoch when Shuffle is set. ctx is checked
// between epochs.
func (m *LinearRegression) Fit(ctx context.Context, X *mat.Dense, y []float64, opts FitOptions) (*History, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if rows == 0 {
		return nil, tabulaerrors.New(tabulaerrors.ErrorTypeEmptyDataset, "no rows to fit")
	}
	if cols != m.inputDim {
		return nil, tabulaerrors.New(tabulaerrors.ErrorTypeConfig, "feature matrix width does not match model input dimension").
			WithDetail("columns", cols).
			WithDetail("input_dim", m.inputDim)
	}
	if len(y) != rows {
		return nil, tabulaerrors.New(tabulaerrors.ErrorTypeInternal, "feature and target row counts differ").
			WithDetail("features", rows).
			WithDetail("targets", len(y))
	}

	rng := newRNG(opts.Seed)
	perm := rng.Perm(rows)
	nTrain := int(math.Floor(float64(rows) * (1 - opts.ValidationSplit)))
	if nTrain < 1 {
		nTrain = 1
	}
	train, val := perm[:nTrain], perm[nTrain:]

	history := &History{TrainRows: len(train), ValidationRows: len(val)}
	opt := newAdam(m.inputDim, opts.LearningRate)
	grad := make([]float64, m.inputDim)
	kernel := m.kernel.RawVector().Data

	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return history, tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeCanceled, "fit canceled").
				WithDetail("epoch", epoch)
		}
		if opts.Shuffle {
			rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
		}

		var sumSq, sumAbs float64
		for start := 0; start < len(train); start += opts.BatchSize {
			end := min(start+opts.BatchSize, len(train))
			batch := train[start:end]

			clear(grad)
			var gradBias float64
			for _, r := range batch {
				row := X.RawRowView(r)
				residual := floats.Dot(kernel, row) + m.bias - y[r]
				sumSq += residual * residual
				sumAbs += math.Abs(residual)
				floats.AddScaled(grad, residual, row)
				gradBias += residual
			}
			scale := 2 / float64(len(batch))
			floats.Scale(scale, grad)
			gradBias *= scale

			m.bias = opt.step(kernel, grad, m.bias, gradBias)
		}

		em := EpochMetrics{
			Epoch: epoch,
			Loss:  sumSq / float64(len(train)),
			MAE:   sumAbs / float64(len(train)),
		}
		if len(val) > 0 {
			em.ValLoss, em.ValMAE = m.evaluate(X, y, val)
			em.HasValidation = true
		}
		history.Epochs = append(history.Epochs, em)
		if opts.OnEpoch != nil {
			opts.OnEpoch(em)
		}
	}

	trained := opts
	trained.OnEpoch = nil
	m.trained = &trained
	return history, nil
}

// Evaluate returns the mean squared and mean absolute error over all rows.
func (m *LinearRegression) Evaluate(X *mat.Dense, y []float64) (mse, mae float64, err error) {
	rows, cols := X.Dims()
	if cols != m.inputDim || len(y) != rows {
		return 0, 0, tabulaerrors.New(tabulaerrors.ErrorTypeConfig, "evaluation data does not match model shape")
	}
	if rows == 0 {
		return 0, 0, nil
	}
	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}
	mse, mae = m.evaluate(X, y, idx)
	return mse, mae, nil
}

func (m *LinearRegression) evaluate(X *mat.Dense, y []float64, idx []int) (mse, mae float64) {
	kernel := m.kernel.RawVector().Data
	for _, r := range idx {
		residual := floats.Dot(kernel, X.RawRowView(r)) + m.bias - y[r]
		mse += residual * residual
		mae += math.Abs(residual)
	}
	n := float64(len(idx))
	return mse / n, mae / n
}

// adam holds the first and second moment estimates of every parameter.
type adam struct {
	lr     float64
	t      int
	m, v   []float64
	mb, vb float64
}

func newAdam(dim int, lr float64) *adam {
	return &adam{lr: lr, m: make([]float64, dim), v: make([]float64, dim)}
}

// step updates w in place and returns the updated bias.
func (a *adam) step(w, g []float64, b, gb float64) float64 {
	a.t++
	t := float64(a.t)
	lrT := a.lr * math.Sqrt(1-math.Pow(adamBeta2, t)) / (1 - math.Pow(adamBeta1, t))

	for i := range w {
		a.m[i] = adamBeta1*a.m[i] + (1-adamBeta1)*g[i]
		a.v[i] = adamBeta2*a.v[i] + (1-adamBeta2)*g[i]*g[i]
		w[i] -= lrT * a.m[i] / (math.Sqrt(a.v[i]) + adamEpsilon)
	}
	a.mb = adamBeta1*a.mb + (1-adamBeta1)*gb
	a.vb = adamBeta2*a.vb + (1-adamBeta2)*gb*gb
	return b - lrT*a.mb/(math.Sqrt(a.vb)+adamEpsilon)
}

func newRNG(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
