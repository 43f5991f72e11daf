package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic_CreatesAndReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "metadata.json")

	require.NoError(t, WriteFileAtomic(path, []byte("v1"), 0o644))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))

	require.NoError(t, WriteFileAtomic(path, []byte("v2"), 0o644))
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))

	assertNoTempFiles(t, filepath.Dir(path))
}

func TestWriteAtomic_FailedFillLeavesPreviousContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")
	require.NoError(t, WriteFileAtomic(path, []byte("id,Rings\n"), 0o644))

	boom := errors.New("stream broke")
	err := WriteAtomic(path, 0o644, func(w io.Writer) error {
		_, _ = w.Write([]byte("id,Rings\n1,"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,Rings\n", string(got))
	assertNoTempFiles(t, filepath.Dir(path))
}

func TestAtomicFile_InvisibleUntilCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "predictions.csv")

	f, err := CreateAtomic(path, 0o644)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path())
	_, err = io.WriteString(f, "id,Rings\n1,9\n")
	require.NoError(t, err)
	assert.NoFileExists(t, path)

	require.NoError(t, f.Commit())
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,Rings\n1,9\n", string(got))
	assertNoTempFiles(t, filepath.Dir(path))

	require.Error(t, f.Commit())
	require.NoError(t, f.Abort())
	assert.FileExists(t, path)
}

func TestAtomicFile_AbortRemovesTemp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")

	f, err := CreateAtomic(path, 0o644)
	require.NoError(t, err)
	_, err = io.WriteString(f, "partial")
	require.NoError(t, err)

	require.NoError(t, f.Abort())
	require.NoError(t, f.Close())
	assert.NoFileExists(t, path)
	assertNoTempFiles(t, filepath.Dir(path))
}

func TestReplaceDir_SwapsExisting(t *testing.T) {
	root := t.TempDir()
	dst := filepath.Join(root, "model")
	require.NoError(t, os.MkdirAll(dst, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "old.txt"), []byte("old"), 0o644))

	src := filepath.Join(root, "staging")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "new.txt"), []byte("new"), 0o644))

	require.NoError(t, ReplaceDir(src, dst))

	assert.FileExists(t, filepath.Join(dst, "new.txt"))
	assert.NoFileExists(t, filepath.Join(dst, "old.txt"))
	assert.NoDirExists(t, src)
	assert.NoDirExists(t, filepath.Join(root, ".model.old"))
}

func TestReplaceDir_MissingSourceRestoresDestination(t *testing.T) {
	root := t.TempDir()
	dst := filepath.Join(root, "model")
	require.NoError(t, os.MkdirAll(dst, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "old.txt"), []byte("old"), 0o644))

	err := ReplaceDir(filepath.Join(root, "does-not-exist"), dst)
	require.Error(t, err)
	assert.FileExists(t, filepath.Join(dst, "old.txt"))
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	ok, err := Exists(dir)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Exists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
