package model

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ajitpratap0/tabula/pkg/compression"
	"github.com/ajitpratap0/tabula/pkg/fsutil"
	"github.com/ajitpratap0/tabula/pkg/json"
	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

// File names inside a model directory.
const (
	DescriptorFile = "model.json"
	WeightsFile    = "weights.bin"
)

// FormatVersion is the model directory format version.
const FormatVersion = 1

const dtypeFloat64LE = "float64le"

// Descriptor is the content of model.json.
type Descriptor struct {
	FormatVersion int             `json:"formatVersion"`
	Architecture  Summary         `json:"architecture"`
	Weights       WeightsManifest `json:"weights"`
	Training      *FitOptions     `json:"training,omitempty"`
	// SchemaFingerprint pairs the model with the schema it was trained against
	SchemaFingerprint string    `json:"schemaFingerprint,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// WeightsManifest locates and checks the weights blob.
type WeightsManifest struct {
	Path        string       `json:"path"`
	Compression string       `json:"compression"`
	DType       string       `json:"dtype"`
	Tensors     []TensorSpec `json:"tensors"`
	// SHA256 is the digest of the blob as stored on disk
	SHA256 string `json:"sha256"`
}

// TensorSpec names one tensor of the blob, in storage order.
type TensorSpec struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
}

// Save writes model.json and weights.bin into dir.
func (m *LinearRegression) Save(dir string) error {
	comp, err := compression.NewCompressor(&compression.Config{Algorithm: m.compression, Level: compression.Default})
	if err != nil {
		return writeFailed(err, dir, "unsupported weights compression")
	}

	kernel := m.kernel.RawVector().Data
	raw := make([]byte, 8*(len(kernel)+1))
	for i, w := range kernel {
		binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(w))
	}
	binary.LittleEndian.PutUint64(raw[8*len(kernel):], math.Float64bits(m.bias))

	blob, err := comp.Compress(raw)
	if err != nil {
		return writeFailed(err, dir, "failed to compress weights")
	}
	sum := sha256.Sum256(blob)

	desc := Descriptor{
		FormatVersion: FormatVersion,
		Architecture:  m.Summary(),
		Weights: WeightsManifest{
			Path:        WeightsFile,
			Compression: string(comp.Algorithm()),
			DType:       dtypeFloat64LE,
			Tensors: []TensorSpec{
				{Name: "kernel", Shape: []int{m.inputDim, 1}},
				{Name: "bias", Shape: []int{1}},
			},
			SHA256: hex.EncodeToString(sum[:]),
		},
		Training:          m.trained,
		SchemaFingerprint: m.schema,
		CreatedAt:         time.Now().UTC(),
	}
	data, err := json.MarshalIndent(desc)
	if err != nil {
		return writeFailed(err, dir, "failed to encode model descriptor")
	}

	if err := fsutil.WriteFileAtomic(filepath.Join(dir, WeightsFile), blob, 0o644); err != nil {
		return writeFailed(err, dir, "failed to write weights")
	}
	// the descriptor goes last: a directory without it is never loadable
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, DescriptorFile), data, 0o644); err != nil {
		return writeFailed(err, dir, "failed to write model descriptor")
	}
	return nil
}

// Load reads the model directory at dir.
func Load(dir string) (Regressor, error) {
	descPath := filepath.Join(dir, DescriptorFile)
	data, err := os.ReadFile(descPath) //nolint:gosec // G304: artifact path comes from configuration
	if errors.Is(err, fs.ErrNotExist) {
		return nil, tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeArtifactMissing, "model artifact not found").
			WithDetail("path", dir)
	}
	if err != nil {
		return nil, corrupt(err, dir, "failed to read model descriptor")
	}

	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, corrupt(err, dir, "failed to decode model descriptor")
	}
	if desc.FormatVersion != FormatVersion {
		return nil, corrupt(nil, dir, "unsupported model format version").
			WithDetail("format_version", desc.FormatVersion)
	}

	switch desc.Architecture.Class {
	case ClassLinearRegression:
		m, err := loadLinear(dir, &desc)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, corrupt(nil, dir, "unknown model class").
			WithDetail("class", desc.Architecture.Class)
	}
}

func loadLinear(dir string, desc *Descriptor) (*LinearRegression, error) {
	arch := desc.Architecture
	if arch.InputDim <= 0 || arch.Units != 1 || !arch.UseBias {
		return nil, corrupt(nil, dir, "invalid linear architecture").
			WithDetail("input_dim", arch.InputDim).
			WithDetail("units", arch.Units)
	}
	w := desc.Weights
	if w.DType != dtypeFloat64LE {
		return nil, corrupt(nil, dir, "unsupported weights dtype").WithDetail("dtype", w.DType)
	}
	if len(w.Tensors) != 2 || !slices.Equal(w.Tensors[0].Shape, []int{arch.InputDim, 1}) || !slices.Equal(w.Tensors[1].Shape, []int{1}) {
		return nil, corrupt(nil, dir, "weights shape does not match architecture")
	}
	if filepath.Base(w.Path) != w.Path {
		return nil, corrupt(nil, dir, "weights path escapes the model directory").WithDetail("weights_path", w.Path)
	}

	blob, err := os.ReadFile(filepath.Join(dir, w.Path)) //nolint:gosec // G304: validated above
	if err != nil {
		return nil, corrupt(err, dir, "failed to read weights")
	}
	sum := sha256.Sum256(blob)
	if hex.EncodeToString(sum[:]) != w.SHA256 {
		return nil, corrupt(nil, dir, "weights checksum mismatch")
	}

	alg, err := compression.ParseAlgorithm(w.Compression)
	if err != nil {
		return nil, corrupt(err, dir, "unsupported weights compression")
	}
	comp, err := compression.NewCompressor(&compression.Config{Algorithm: alg})
	if err != nil {
		return nil, corrupt(err, dir, "unsupported weights compression")
	}
	raw, err := comp.Decompress(blob)
	if err != nil {
		return nil, corrupt(err, dir, "failed to decompress weights")
	}
	if len(raw) != 8*(arch.InputDim+1) {
		return nil, corrupt(nil, dir, "weights blob has the wrong size").
			WithDetail("bytes", len(raw))
	}

	kernel := make([]float64, arch.InputDim)
	for i := range kernel {
		kernel[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	return &LinearRegression{
		inputDim:    arch.InputDim,
		kernel:      mat.NewVecDense(arch.InputDim, kernel),
		bias:        math.Float64frombits(binary.LittleEndian.Uint64(raw[8*arch.InputDim:])),
		compression: alg,
		trained:     desc.Training,
		schema:      desc.SchemaFingerprint,
	}, nil
}

func corrupt(err error, dir, msg string) *tabulaerrors.Error {
	if err == nil {
		return tabulaerrors.New(tabulaerrors.ErrorTypeArtifactCorrupt, msg).WithDetail("path", dir)
	}
	return tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeArtifactCorrupt, msg).WithDetail("path", dir)
}

func writeFailed(err error, dir, msg string) error {
	return tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeArtifactWriteFailed, msg).WithDetail("path", dir)
}
