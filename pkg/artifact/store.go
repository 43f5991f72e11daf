// Package artifact manages the pair of artifacts a training run produces: the
// model directory and the schema file next to it.
//
// Commit is all-or-none. Both artifacts are first written into a staging
// directory under the artifact root, then moved into place with renames; if
// any step fails the previous pair is restored and the staging directory is
// removed. Load reads the pair back and checks that they belong together.
package artifact

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tabula/pkg/config"
	"github.com/ajitpratap0/tabula/pkg/fsutil"
	"github.com/ajitpratap0/tabula/pkg/model"
	"github.com/ajitpratap0/tabula/pkg/schema"
	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

// Store locates the artifacts of one model name.
type Store struct {
	dir        string
	modelName  string
	schemaFile string
	logger     *zap.Logger
}

// Bundle is a loaded, mutually consistent schema and model.
type Bundle struct {
	Schema *schema.Schema
	Model  model.Regressor
}

// NewStore creates a store for the configured artifact locations.
func NewStore(cfg config.ArtifactsConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dir:        cfg.Dir,
		modelName:  cfg.ModelName,
		schemaFile: cfg.SchemaFile,
		logger:     logger,
	}
}

// Dir returns the artifact root.
func (s *Store) Dir() string {
	return s.dir
}

// ModelDir returns <dir>/<model_name>.
func (s *Store) ModelDir() string {
	return filepath.Join(s.dir, s.modelName)
}

// SchemaPath returns <dir>/<schema_file>.
func (s *Store) SchemaPath() string {
	return filepath.Join(s.dir, s.schemaFile)
}

// Commit persists m and sc as a pair, replacing any previous pair. The
// schema fingerprint is bound to m before it is saved.
func (s *Store) Commit(m model.Regressor, sc *schema.Schema) error {
	if m.InputDim() != len(sc.FeatureOrder) {
		return tabulaerrors.New(tabulaerrors.ErrorTypeInternal, "model input dimension does not match schema feature order").
			WithDetail("input_dim", m.InputDim()).
			WithDetail("feature_order_length", len(sc.FeatureOrder))
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return writeFailed(err, "failed to create artifact directory", s.dir)
	}
	staging, err := os.MkdirTemp(s.dir, ".staging-*")
	if err != nil {
		return writeFailed(err, "failed to create staging directory", s.dir)
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			s.logger.Warn("failed to remove staging directory", zap.String("path", staging), zap.Error(err))
		}
	}()

	m.BindSchema(sc.Fingerprint())
	stagedModel := filepath.Join(staging, s.modelName)
	stagedSchema := filepath.Join(staging, s.schemaFile)
	if err := m.Save(stagedModel); err != nil {
		return writeFailed(err, "failed to stage model", stagedModel)
	}
	if err := schema.Save(stagedSchema, sc); err != nil {
		return writeFailed(err, "failed to stage schema", stagedSchema)
	}

	// move the previous schema aside so it can be restored
	previousSchema := ""
	if ok, err := fsutil.Exists(s.SchemaPath()); err != nil {
		return writeFailed(err, "failed to stat schema", s.SchemaPath())
	} else if ok {
		previousSchema = filepath.Join(staging, "previous-"+s.schemaFile)
		if err := os.Rename(s.SchemaPath(), previousSchema); err != nil {
			return writeFailed(err, "failed to move previous schema aside", s.SchemaPath())
		}
	}
	restoreSchema := func() {
		_ = os.Remove(s.SchemaPath())
		if previousSchema != "" {
			if err := os.Rename(previousSchema, s.SchemaPath()); err != nil {
				s.logger.Error("failed to restore previous schema", zap.String("path", s.SchemaPath()), zap.Error(err))
			}
		}
	}

	if err := os.Rename(stagedSchema, s.SchemaPath()); err != nil {
		restoreSchema()
		return writeFailed(err, "failed to move schema into place", s.SchemaPath())
	}
	if err := fsutil.ReplaceDir(stagedModel, s.ModelDir()); err != nil {
		restoreSchema()
		return writeFailed(err, "failed to move model into place", s.ModelDir())
	}

	s.logger.Info("artifacts committed",
		zap.String("model_dir", s.ModelDir()),
		zap.String("schema_path", s.SchemaPath()),
		zap.String("schema_fingerprint", sc.Fingerprint()))
	return nil
}

// Load reads the schema, then the model, and checks that they belong
// together: the model input dimension equals the feature order length and
// the schema fingerprint recorded in model.json matches the schema.
func (s *Store) Load() (*Bundle, error) {
	if _, err := os.Stat(s.dir); errors.Is(err, fs.ErrNotExist) {
		return nil, tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeArtifactMissing, "artifact directory not found").
			WithDetail("path", s.dir)
	}

	sc, err := schema.Load(s.SchemaPath())
	if err != nil {
		return nil, err
	}
	m, err := model.Load(s.ModelDir())
	if err != nil {
		return nil, err
	}

	if m.InputDim() != len(sc.FeatureOrder) {
		return nil, tabulaerrors.New(tabulaerrors.ErrorTypeArtifactCorrupt, "model and schema were not produced by the same run").
			WithDetail("input_dim", m.InputDim()).
			WithDetail("feature_order_length", len(sc.FeatureOrder)).
			WithDetail("model_dir", s.ModelDir()).
			WithDetail("schema_path", s.SchemaPath())
	}
	if m.SchemaFingerprint() != sc.Fingerprint() {
		return nil, tabulaerrors.New(tabulaerrors.ErrorTypeArtifactCorrupt, "model was trained against a different schema").
			WithDetail("model_schema_fingerprint", m.SchemaFingerprint()).
			WithDetail("schema_fingerprint", sc.Fingerprint()).
			WithDetail("model_dir", s.ModelDir()).
			WithDetail("schema_path", s.SchemaPath())
	}

	s.logger.Debug("artifacts loaded",
		zap.String("model_dir", s.ModelDir()),
		zap.String("schema_path", s.SchemaPath()),
		zap.String("schema_fingerprint", sc.Fingerprint()),
		zap.Int("features", len(sc.FeatureOrder)))
	return &Bundle{Schema: sc, Model: m}, nil
}

func writeFailed(err error, msg, path string) error {
	if tabulaerrors.IsType(err, tabulaerrors.ErrorTypeArtifactWriteFailed) {
		return err
	}
	return tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeArtifactWriteFailed, msg).WithDetail("path", path)
}
