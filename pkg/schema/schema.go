// Package schema defines the schema artifact: the feature order and
// categorical mapping fixed at training time, persisted next to the model and
// reloaded by inference so that vectors are reproduced exactly.
//
// The artifact is immutable once written. Retraining replaces it as a whole.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ajitpratap0/tabula/pkg/encoding"
	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

// Version is the schema artifact format version.
const Version = 1

// Schema is the persisted encoding state of a trained model.
type Schema struct {
	FeatureOrder       []string         `json:"featureOrder"`
	CategoricalColumn  string           `json:"categoricalColumn,omitempty"`
	CategoricalMapping encoding.Mapping `json:"categoricalMapping"`
	IDColumn           string           `json:"idColumn"`
	TargetColumn       string           `json:"targetColumn"`
	CreatedAt          time.Time        `json:"createdAt"`
	Version            int              `json:"version"`
}

// New captures the encoding state of a training run. The inputs are copied.
func New(featureOrder []string, cat *encoding.Categorical, idColumn, targetColumn string, createdAt time.Time) *Schema {
	s := &Schema{
		FeatureOrder:       append([]string(nil), featureOrder...),
		CategoricalMapping: encoding.Mapping{},
		IDColumn:           idColumn,
		TargetColumn:       targetColumn,
		CreatedAt:          createdAt.UTC(),
		Version:            Version,
	}
	if cat != nil {
		s.CategoricalColumn = cat.Column
		for sym, i := range cat.Mapping {
			s.CategoricalMapping[sym] = i
		}
	}
	return s
}

// Categorical returns the one-hot encoded column, or nil when the schema
// has none.
func (s *Schema) Categorical() *encoding.Categorical {
	if s.CategoricalColumn == "" {
		return nil
	}
	return &encoding.Categorical{Column: s.CategoricalColumn, Mapping: s.CategoricalMapping}
}

// Validate checks the structural invariants of a schema artifact.
func (s *Schema) Validate() error {
	if s.Version != Version {
		return corrupt("unsupported schema version").WithDetail("version", s.Version)
	}
	if len(s.FeatureOrder) == 0 {
		return corrupt("feature order is empty")
	}
	seen := make(map[string]struct{}, len(s.FeatureOrder))
	for _, name := range s.FeatureOrder {
		if name == "" {
			return corrupt("feature order contains an empty name")
		}
		if _, dup := seen[name]; dup {
			return corrupt("feature order contains a duplicate name").WithDetail("field", name)
		}
		seen[name] = struct{}{}
	}

	if s.CategoricalColumn == "" && len(s.CategoricalMapping) > 0 {
		return corrupt("categorical mapping has no column")
	}
	if s.CategoricalColumn != "" && len(s.CategoricalMapping) == 0 {
		return corrupt("categorical column has an empty mapping")
	}
	if err := s.CategoricalMapping.Validate(); err != nil {
		return err
	}

	if s.IDColumn == "" || s.TargetColumn == "" {
		return corrupt("id and target column names are required")
	}
	if s.CreatedAt.IsZero() {
		return corrupt("creation timestamp is missing")
	}
	return nil
}

// Fingerprint is a short stable digest of the encoding state. Two schemas
// with the same fingerprint produce identical vectors for every row.
func (s *Schema) Fingerprint() string {
	h := sha256.New()
	for _, name := range s.FeatureOrder {
		h.Write([]byte(name))
		h.Write([]byte{0})
	}
	h.Write([]byte{1})
	if cat := s.Categorical(); cat != nil {
		h.Write([]byte(cat.Column))
		for _, sym := range cat.Mapping.Symbols() {
			h.Write([]byte{0})
			h.Write([]byte(sym))
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func corrupt(msg string) *tabulaerrors.Error {
	return tabulaerrors.New(tabulaerrors.ErrorTypeArtifactCorrupt, msg)
}
