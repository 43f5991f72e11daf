package json

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type descriptor struct {
	Names   []string       `json:"names"`
	Mapping map[string]int `json:"mapping"`
}

func TestMarshalIndent_KeepsOrderAndIndents(t *testing.T) {
	in := descriptor{
		Names:   []string{"Length", "sex_M", "sex_F", "sex_I"},
		Mapping: map[string]int{"M": 0},
	}

	data, err := MarshalIndent(in)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "\n  \"names\""))

	var out descriptor
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestMarshalIndent_DoesNotEscapeHTML(t *testing.T) {
	data, err := MarshalIndent(map[string]string{"k": "a<b"})
	require.NoError(t, err)
	assert.Contains(t, string(data), "a<b")
}

func TestPutBuffer_DropsLargeBuffers(t *testing.T) {
	buf := GetBuffer()
	buf.Grow(2 * 1024 * 1024)
	PutBuffer(buf)

	next := GetBuffer()
	assert.Equal(t, 0, next.Len())
}
