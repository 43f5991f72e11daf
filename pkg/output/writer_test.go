package output

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tabula/pkg/compression"
	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
	"github.com/ajitpratap0/tabula/pkg/testutil"
)

func TestWriter_CommitWritesTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")

	w, err := Create(path, "id", "Rings")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "Rings"}, w.Header())

	require.NoError(t, w.Write("3", 9.5))
	require.NoError(t, w.Write("1", 7))
	require.NoError(t, w.Write("2", -0.125))
	assert.Equal(t, 3, w.Rows())
	assert.NoFileExists(t, path)

	require.NoError(t, w.Commit())
	assert.Equal(t, []string{"id,Rings", "3,9.5", "1,7", "2,-0.125"}, testutil.ReadLines(t, path))
}

func TestWriter_EmptyTableHasHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")

	w, err := Create(path, "row_id", "price")
	require.NoError(t, err)
	require.NoError(t, w.Commit())
	assert.Equal(t, []string{"row_id,price"}, testutil.ReadLines(t, path))
}

func TestWriter_AbortLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "predictions.csv")

	w, err := Create(path, "id", "Rings")
	require.NoError(t, err)
	require.NoError(t, w.Write("1", 1))
	require.NoError(t, w.Abort())
	require.NoError(t, w.Abort())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	err = w.Write("2", 2)
	require.Error(t, err)
	assert.True(t, tabulaerrors.IsType(err, tabulaerrors.ErrorTypeOutput))
	require.Error(t, w.Commit())
}

func TestWriter_AbortKeepsPreviousTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,Rings\n1,5\n"), 0o644))

	w, err := Create(path, "id", "Rings")
	require.NoError(t, err)
	require.NoError(t, w.Write("1", 6))
	require.NoError(t, w.Abort())

	assert.Equal(t, []string{"id,Rings", "1,5"}, testutil.ReadLines(t, path))
}

func TestWriter_QuotesIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")

	w, err := Create(path, "id", "Rings")
	require.NoError(t, err)
	require.NoError(t, w.Write("a,b", 1))
	require.NoError(t, w.Commit())

	assert.Equal(t, []string{"id,Rings", `"a,b",1`}, testutil.ReadLines(t, path))
}

func TestWriter_CompressesByExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv.gz")

	w, err := Create(path, "id", "Rings")
	require.NoError(t, err)
	require.NoError(t, w.Write("1", 10.25))
	require.NoError(t, w.Commit())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	rc, err := compression.NewReader(bytes.NewReader(raw), compression.Gzip)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "id,Rings\n1,10.25\n", string(got))
}

func TestWriter_CreateFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := Create(filepath.Join(blocker, "predictions.csv"), "id", "Rings")
	require.Error(t, err)
	assert.True(t, tabulaerrors.IsType(err, tabulaerrors.ErrorTypeOutput))
}

func TestFormatPrediction(t *testing.T) {
	tests := map[float64]string{
		9:         "9",
		9.5:       "9.5",
		-0.125:    "-0.125",
		1e21:      "1000000000000000000000",
		1.0 / 3.0: "0.3333333333333333",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatPrediction(in))
	}
}
