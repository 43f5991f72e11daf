package schema

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tabula/pkg/encoding"
	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()
	m, err := encoding.NewMapping([]string{"M", "F", "I"})
	require.NoError(t, err)
	created := time.Date(2024, 5, 1, 12, 30, 0, 123456789, time.FixedZone("CEST", 2*3600))
	return New(
		[]string{"Length", "Diameter", "sex_M", "sex_F", "sex_I"},
		&encoding.Categorical{Column: "Sex", Mapping: m},
		"id", "Rings", created,
	)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	want := testSchema(t)

	require.NoError(t, Save(path, want))
	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, want.FeatureOrder, got.FeatureOrder)
	assert.Equal(t, want.CategoricalMapping, got.CategoricalMapping)
	assert.Equal(t, "Sex", got.CategoricalColumn)
	assert.Equal(t, "id", got.IDColumn)
	assert.Equal(t, "Rings", got.TargetColumn)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, time.UTC, got.CreatedAt.Location())
	assert.Equal(t, want.Fingerprint(), got.Fingerprint())
}

func TestMarshal_Layout(t *testing.T) {
	data, err := Marshal(testSchema(t))
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, `"featureOrder": [`)
	assert.Contains(t, text, `"categoricalMapping": {`)
	assert.Contains(t, text, `"F": 1`)
	assert.Contains(t, text, `"createdAt": "2024-05-01T10:30:00.123456789Z"`)
	assert.Contains(t, text, `"version": 1`)
}

func TestNew_WithoutCategorical(t *testing.T) {
	s := New([]string{"x"}, nil, "id", "y", time.Now())
	require.NoError(t, s.Validate())
	assert.Nil(t, s.Categorical())

	data, err := Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"categoricalMapping": {}`)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Empty(t, got.CategoricalMapping)
}

func TestNew_CopiesInputs(t *testing.T) {
	order := []string{"a", "b"}
	m := encoding.Mapping{"M": 0}
	s := New(order, &encoding.Categorical{Column: "Sex", Mapping: m}, "id", "y", time.Now())

	order[0] = "z"
	m["F"] = 1
	assert.Equal(t, []string{"a", "b"}, s.FeatureOrder)
	assert.Len(t, s.CategoricalMapping, 1)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "metadata.json"))
	require.Error(t, err)
	assert.True(t, tabulaerrors.IsType(err, tabulaerrors.ErrorTypeArtifactMissing))
}

func TestLoad_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", `{"featureOrder": [`},
		{"empty order", `{"featureOrder": [], "categoricalMapping": {}, "idColumn": "id", "targetColumn": "y", "createdAt": "2024-01-01T00:00:00Z", "version": 1}`},
		{"duplicate order", `{"featureOrder": ["a","a"], "categoricalMapping": {}, "idColumn": "id", "targetColumn": "y", "createdAt": "2024-01-01T00:00:00Z", "version": 1}`},
		{"sparse mapping", `{"featureOrder": ["sex_M"], "categoricalColumn": "Sex", "categoricalMapping": {"M": 1}, "idColumn": "id", "targetColumn": "y", "createdAt": "2024-01-01T00:00:00Z", "version": 1}`},
		{"bad timestamp", `{"featureOrder": ["a"], "categoricalMapping": {}, "idColumn": "id", "targetColumn": "y", "createdAt": "yesterday", "version": 1}`},
		{"missing timestamp", `{"featureOrder": ["a"], "categoricalMapping": {}, "idColumn": "id", "targetColumn": "y", "version": 1}`},
		{"future version", `{"featureOrder": ["a"], "categoricalMapping": {}, "idColumn": "id", "targetColumn": "y", "createdAt": "2024-01-01T00:00:00Z", "version": 2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "metadata.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, tabulaerrors.IsType(err, tabulaerrors.ErrorTypeArtifactCorrupt), err.Error())
		})
	}
}

func TestFingerprint_SensitiveToOrder(t *testing.T) {
	a := New([]string{"x", "y"}, nil, "id", "t", time.Now())
	b := New([]string{"y", "x"}, nil, "id", "t", time.Now())
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 16)
}

func TestCompareFields(t *testing.T) {
	changes := CompareFields([]string{"a", "b", "c"}, []string{"c", "d", "a"})
	assert.Equal(t, []FieldChange{
		{Type: ChangeTypeAddField, Field: "d"},
		{Type: ChangeTypeRemoveField, Field: "b"},
	}, changes)

	assert.True(t, SameFields([]string{"a", "b"}, []string{"b", "a"}))
	assert.False(t, SameFields([]string{"a", "b"}, []string{"a"}))
	assert.Empty(t, CompareFields([]string{"a"}, []string{"a"}))
}
