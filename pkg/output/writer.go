// Package output writes the prediction table produced by inference.
//
// Rows are streamed into a temporary file next to the destination and the
// table only appears at its path on Commit, so a run that fails part way
// leaves no output behind. A destination ending in a compression extension
// (.gz, .zst, .lz4, .sz, .s2) is compressed while it is written.
package output

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ajitpratap0/tabula/pkg/compression"
	"github.com/ajitpratap0/tabula/pkg/fsutil"
	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

// Writer writes (id, prediction) rows under a two-column header.
type Writer struct {
	file   *fsutil.AtomicFile
	codec  io.WriteCloser
	csv    *csv.Writer
	header []string
	rows   int
	done   bool
}

// Create opens a prediction table at path with the header
// idColumn,targetColumn.
func Create(path, idColumn, targetColumn string) (*Writer, error) {
	f, err := fsutil.CreateAtomic(path, 0o644)
	if err != nil {
		return nil, outputError(err, "failed to create prediction table", path)
	}
	codec, err := compression.NewWriter(f, compression.FromExtension(path), compression.Default)
	if err != nil {
		_ = f.Abort()
		return nil, outputError(err, "failed to open output codec", path)
	}

	w := &Writer{
		file:   f,
		codec:  codec,
		csv:    csv.NewWriter(codec),
		header: []string{idColumn, targetColumn},
	}
	if err := w.csv.Write(w.header); err != nil {
		_ = w.Abort()
		return nil, outputError(err, "failed to write header", path)
	}
	return w, nil
}

// Header returns the column names of the table.
func (w *Writer) Header() []string {
	return w.header
}

// Path returns the destination path.
func (w *Writer) Path() string {
	return w.file.Path()
}

// Rows returns the number of data rows written so far.
func (w *Writer) Rows() int {
	return w.rows
}

// Write appends one row.
func (w *Writer) Write(id string, prediction float64) error {
	if w.done {
		return tabulaerrors.New(tabulaerrors.ErrorTypeOutput, "prediction table already closed").
			WithDetail("path", w.Path())
	}
	if err := w.csv.Write([]string{id, FormatPrediction(prediction)}); err != nil {
		return outputError(err, "failed to write prediction", w.Path())
	}
	w.rows++
	return nil
}

// Commit flushes the table and moves it into place. On failure nothing is
// left at the destination.
func (w *Writer) Commit() error {
	if w.done {
		return tabulaerrors.New(tabulaerrors.ErrorTypeOutput, "prediction table already closed").
			WithDetail("path", w.Path())
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		_ = w.Abort()
		return outputError(err, "failed to flush prediction table", w.Path())
	}
	if err := w.codec.Close(); err != nil {
		_ = w.Abort()
		return outputError(err, "failed to finish compressed output", w.Path())
	}
	w.done = true
	if err := w.file.Commit(); err != nil {
		return outputError(err, "failed to commit prediction table", w.Path())
	}
	return nil
}

// Abort discards everything written. It is safe to call after Commit.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	_ = w.codec.Close()
	if err := w.file.Abort(); err != nil {
		return outputError(err, "failed to discard prediction table", w.Path())
	}
	return nil
}

// FormatPrediction renders a prediction with the shortest representation
// that parses back to the same float64.
func FormatPrediction(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func outputError(err error, msg, path string) error {
	return tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeOutput, msg).WithDetail("path", path)
}
