package schema

import (
	"errors"
	"io/fs"
	"os"

	"github.com/ajitpratap0/tabula/pkg/fsutil"
	"github.com/ajitpratap0/tabula/pkg/json"
	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

// Marshal encodes s as indented JSON.
func Marshal(s *Schema) ([]byte, error) {
	data, err := json.MarshalIndent(s)
	if err != nil {
		return nil, tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeInternal, "failed to encode schema")
	}
	return data, nil
}

// Unmarshal decodes and validates a schema artifact.
func Unmarshal(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeArtifactCorrupt, "failed to decode schema")
	}
	if s.CategoricalMapping == nil {
		s.CategoricalMapping = map[string]int{}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save writes s to path atomically.
func Save(path string, s *Schema) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeArtifactWriteFailed, "failed to write schema").
			WithDetail("path", path)
	}
	return nil
}

// Load reads the schema at path.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: artifact path comes from configuration
	if errors.Is(err, fs.ErrNotExist) {
		return nil, tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeArtifactMissing, "schema artifact not found").
			WithDetail("path", path)
	}
	if err != nil {
		return nil, tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeArtifactCorrupt, "failed to read schema").
			WithDetail("path", path)
	}

	s, err := Unmarshal(data)
	if err != nil {
		var te *tabulaerrors.Error
		if errors.As(err, &te) {
			te.WithDetail("path", path)
		}
		return nil, err
	}
	return s, nil
}
