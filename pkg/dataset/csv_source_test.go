package dataset

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
	"github.com/ajitpratap0/tabula/pkg/testutil"
)

func openTest(t *testing.T, opts Options) *Source {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = testutil.TestLogger(t)
	}
	src, err := Open(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func collect(t *testing.T, src *Source) []*Record {
	t.Helper()
	stream, err := src.Stream(context.Background())
	require.NoError(t, err)

	var out []*Record
	require.NoError(t, Drain(context.Background(), stream, func(rec *Record) error {
		out = append(out, rec)
		return nil
	}))
	return out
}

func TestSource_LabeledSplitsTarget(t *testing.T) {
	path := testutil.WriteCSV(t, t.TempDir(), "train.csv",
		[]string{"id", "Sex", "Length", "Rings"},
		[]string{"0", "M", "0.5", "10"},
		[]string{"1", "F", "0.3", "7"},
	)
	src := openTest(t, Options{Path: path, HasHeader: true, TargetColumn: "Rings", Prefetch: 1})
	assert.Equal(t, []string{"id", "Sex", "Length"}, src.Header().Names())

	recs := collect(t, src)
	require.Len(t, recs, 2)

	assert.True(t, recs[0].Labeled)
	assert.Equal(t, 10.0, recs[0].Target)
	assert.Equal(t, 2, recs[0].Line)
	assert.Equal(t, []string{"id", "Sex", "Length"}, recs[0].Row.Columns())
	v, ok := recs[1].Row.Get("Length")
	assert.True(t, ok)
	assert.Equal(t, "0.3", v)
	_, ok = recs[1].Row.Get("Rings")
	assert.False(t, ok)
	assert.Equal(t, 7.0, recs[1].Target)
}

func TestSource_TargetColumnMissingFromHeader(t *testing.T) {
	path := testutil.WriteCSV(t, t.TempDir(), "train.csv",
		[]string{"id", "Sex", "Length"},
		[]string{"0", "M", "0.5"},
	)
	_, err := Open(context.Background(), Options{Path: path, HasHeader: true, TargetColumn: "Rings"})
	require.Error(t, err)
	assert.True(t, tabulaerrors.IsType(err, tabulaerrors.ErrorTypeConfig))
}

func TestSource_InvalidTarget(t *testing.T) {
	tests := []struct {
		name string
		row  []string
	}{
		{"non numeric", []string{"0", "M", "ten"}},
		{"empty", []string{"0", "M", ""}},
		{"absent", []string{"0", "M"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteCSV(t, t.TempDir(), "train.csv", []string{"id", "Sex", "Rings"}, tt.row)
			src := openTest(t, Options{Path: path, HasHeader: true, TargetColumn: "Rings"})

			stream, err := src.Stream(context.Background())
			require.NoError(t, err)
			err = Drain(context.Background(), stream, func(*Record) error { return nil })
			require.Error(t, err)
			assert.True(t, tabulaerrors.IsType(err, tabulaerrors.ErrorTypeInvalidValue))
		})
	}
}

func TestSource_WithoutHeader(t *testing.T) {
	path := testutil.WriteCSV(t, t.TempDir(), "test.csv",
		[]string{"7", "I", "0.4"},
		[]string{"8", "M", "0.6"},
	)
	src := openTest(t, Options{Path: path, HasHeader: false})
	assert.Equal(t, []string{"column_0", "column_1", "column_2"}, src.Header().Names())

	recs := collect(t, src)
	require.Len(t, recs, 2)
	assert.False(t, recs[0].Labeled)
	assert.Equal(t, 1, recs[0].Line)
	id, _ := recs[0].Row.Get("column_0")
	assert.Equal(t, "7", id)
	id, _ = recs[1].Row.Get("column_0")
	assert.Equal(t, "8", id)
}

func TestSource_ShortAndLongRows(t *testing.T) {
	path := testutil.WriteCSV(t, t.TempDir(), "test.csv",
		[]string{"id", "Sex", "Length"},
		[]string{"1", "M"},
		[]string{"2", "F", "0.3", "extra"},
	)
	src := openTest(t, Options{Path: path, HasHeader: true})

	stream, err := src.Stream(context.Background())
	require.NoError(t, err)

	var got []*Record
	err = Drain(context.Background(), stream, func(rec *Record) error {
		got = append(got, rec)
		return nil
	})
	require.Error(t, err)
	assert.True(t, tabulaerrors.IsType(err, tabulaerrors.ErrorTypeSchemaMismatch))

	require.Len(t, got, 1)
	_, ok := got[0].Row.Get("Length")
	assert.False(t, ok)
	assert.Equal(t, []string{"id", "Sex"}, got[0].Row.Columns())
}

func TestSource_EmptyFile(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "empty.csv", "")
	src := openTest(t, Options{Path: path, HasHeader: true, TargetColumn: "Rings"})
	assert.Empty(t, collect(t, src))
}

func TestSource_HeaderOnly(t *testing.T) {
	path := testutil.WriteCSV(t, t.TempDir(), "train.csv", []string{"id", "Sex", "Rings"})
	src := openTest(t, Options{Path: path, HasHeader: true, TargetColumn: "Rings"})
	assert.Empty(t, collect(t, src))
}

func TestSource_DuplicateHeader(t *testing.T) {
	path := testutil.WriteCSV(t, t.TempDir(), "train.csv", []string{"id", "a", "a"})
	_, err := Open(context.Background(), Options{Path: path, HasHeader: true})
	require.Error(t, err)
	assert.True(t, tabulaerrors.IsType(err, tabulaerrors.ErrorTypeSource))
}

func TestSource_MissingFile(t *testing.T) {
	_, err := Open(context.Background(), Options{Path: filepath.Join(t.TempDir(), "nope.csv")})
	require.Error(t, err)
	assert.True(t, tabulaerrors.IsType(err, tabulaerrors.ErrorTypeSource))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSource_SinglePass(t *testing.T) {
	path := testutil.WriteCSV(t, t.TempDir(), "test.csv", []string{"id"}, []string{"1"})
	src := openTest(t, Options{Path: path, HasHeader: true})

	_ = collect(t, src)
	_, err := src.Stream(context.Background())
	require.Error(t, err)
	assert.True(t, tabulaerrors.IsType(err, tabulaerrors.ErrorTypeSource))
}

func TestSource_CompressedInputs(t *testing.T) {
	content := []byte("id,Length,Rings\n1,0.5,10\n2,0.25,4\n")

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write(content)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	zst := enc.EncodeAll(content, nil)
	require.NoError(t, enc.Close())

	files := map[string][]byte{
		"train.csv.gz":  gz.Bytes(),
		"train.csv.zst": zst,
	}

	for name, data := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.WriteFile(path, data, 0o600))

			src := openTest(t, Options{Path: path, HasHeader: true, TargetColumn: "Rings"})
			recs := collect(t, src)
			require.Len(t, recs, 2)
			assert.Equal(t, 4.0, recs[1].Target)
		})
	}
}

func TestSource_CustomDelimiter(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "train.tsv", "id;x;y\n1;2.5;3\n")
	src := openTest(t, Options{Path: path, HasHeader: true, TargetColumn: "y", Delimiter: ';'})

	recs := collect(t, src)
	require.Len(t, recs, 1)
	x, _ := recs[0].Row.Get("x")
	assert.Equal(t, "2.5", x)
	assert.Equal(t, 3.0, recs[0].Target)
}

func TestDrain_StopsOnCallbackError(t *testing.T) {
	path := testutil.WriteCSV(t, t.TempDir(), "test.csv",
		[]string{"id"}, []string{"1"}, []string{"2"}, []string{"3"},
	)
	src := openTest(t, Options{Path: path, HasHeader: true})

	stream, err := src.Stream(context.Background())
	require.NoError(t, err)

	boom := errors.New("boom")
	seen := 0
	err = Drain(context.Background(), stream, func(*Record) error {
		seen++
		if seen == 2 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, seen)
}

func TestDrain_Canceled(t *testing.T) {
	path := testutil.WriteCSV(t, t.TempDir(), "test.csv",
		[]string{"id"}, []string{"1"}, []string{"2"}, []string{"3"},
	)
	src := openTest(t, Options{Path: path, HasHeader: true})

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := src.Stream(ctx)
	require.NoError(t, err)

	err = Drain(ctx, stream, func(*Record) error {
		cancel()
		return nil
	})
	require.Error(t, err)
	assert.True(t, tabulaerrors.IsType(err, tabulaerrors.ErrorTypeCanceled))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRow_ColumnOrderIndependentLookup(t *testing.T) {
	a := NewRow([]string{"Sex", "Length"}, []string{"M", "0.5"})
	b := NewRow([]string{"Length", "Sex"}, []string{"0.5", "M"})

	for _, col := range []string{"Sex", "Length"} {
		va, _ := a.Get(col)
		vb, _ := b.Get(col)
		assert.Equal(t, va, vb, col)
	}
	_, ok := a.Get("Height")
	assert.False(t, ok)
	assert.Equal(t, 2, a.Len())
}

func TestParseNumber(t *testing.T) {
	v, err := ParseNumber(" 0.455 ")
	require.NoError(t, err)
	assert.Equal(t, 0.455, v)

	_, err = ParseNumber("")
	assert.Error(t, err)
	_, err = ParseNumber("M")
	assert.Error(t, err)
}
