package tabulaerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_NilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeInternal, "nothing"))
}

func TestWrap_PreservesStack(t *testing.T) {
	inner := New(ErrorTypeInvalidValue, "bad cell")
	outer := Wrap(inner, ErrorTypeSource, "row 3")

	require.NotNil(t, outer)
	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, IsType(outer, ErrorTypeSource))
	assert.True(t, IsType(outer, ErrorTypeInvalidValue))
	assert.False(t, IsType(outer, ErrorTypeConfig))
	assert.Equal(t, "source: row 3: invalid_value: bad cell", outer.Error())
}

func TestIsType_ThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("train: %w", New(ErrorTypeEmptyDataset, "no rows"))
	assert.True(t, IsType(err, ErrorTypeEmptyDataset))
	assert.Equal(t, ErrorTypeEmptyDataset, TypeOf(err))
}

func TestIsType_PlainError(t *testing.T) {
	assert.False(t, IsType(errors.New("x"), ErrorTypeInternal))
	assert.False(t, IsType(nil, ErrorTypeInternal))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeSchemaMismatch, "field set changed").
		WithDetail("line", 7).
		WithDetail("extra", []string{"Weight"})

	assert.Equal(t, 7, err.Details["line"])
	assert.Equal(t, []string{"Weight"}, err.Details["extra"])
	assert.NotEmpty(t, err.Stack)
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.True(t, IsFatal(New(ErrorTypeArtifactCorrupt, "bad json")))
}
