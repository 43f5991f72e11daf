// Package dataset reads tabular rows from delimited text files.
//
// A Source is opened once and streamed once: rows are produced by a background
// reader into a bounded channel, so at most Prefetch rows are read ahead of the
// consumer and input order is always preserved. Both pipelines consume the
// stream through Drain.
//
// Example usage:
//
//	src, err := dataset.Open(ctx, dataset.Options{
//	    Path:         "train.csv.gz",
//	    HasHeader:    true,
//	    TargetColumn: "Rings",
//	})
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//
//	stream, err := src.Stream(ctx)
//	if err != nil {
//	    return err
//	}
//	err = dataset.Drain(ctx, stream, func(rec *dataset.Record) error {
//	    return consume(rec)
//	})
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tabula/pkg/compression"
	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

// Options configures a Source.
type Options struct {
	Path      string
	HasHeader bool
	// TargetColumn is split out of every row; empty means the source is unlabeled
	TargetColumn string
	// Delimiter defaults to a comma
	Delimiter rune
	// Prefetch is the number of rows read ahead of the consumer
	Prefetch int
	// Compression overrides detection from the file extension
	Compression compression.Algorithm
	Logger      *zap.Logger
}

// Source is a CSV row source. It is not restartable.
type Source struct {
	opts   Options
	logger *zap.Logger

	file   *os.File
	body   io.ReadCloser
	reader *csv.Reader

	header    *Header // feature-side columns, target removed
	width     int     // number of fields in the file header
	targetIdx int     // position of the target in a raw record, -1 if unlabeled
	pending   []string
	pendLine  int

	streamed atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// Open opens the file at opts.Path and reads its header. Without a header,
// columns are named column_<i> from the width of the first record.
func Open(ctx context.Context, opts Options) (*Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, Canceled(err)
	}
	if opts.Path == "" {
		return nil, tabulaerrors.New(tabulaerrors.ErrorTypeConfig, "dataset path is required")
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.Prefetch < 0 {
		opts.Prefetch = 0
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Source{
		opts:      opts,
		logger:    opts.Logger.With(zap.String("path", opts.Path)),
		targetIdx: -1,
	}
	if err := s.openFile(); err != nil {
		return nil, err
	}
	if err := s.readHeader(); err != nil {
		_ = s.closeFile()
		return nil, err
	}

	s.logger.Debug("dataset opened",
		zap.Strings("columns", s.header.Names()),
		zap.Bool("has_header", opts.HasHeader),
		zap.Bool("labeled", s.targetIdx >= 0))
	return s, nil
}

// Header returns the feature-side columns of the source.
func (s *Source) Header() *Header {
	return s.header
}

// Stream starts the background reader. It may be called once.
func (s *Source) Stream(ctx context.Context) (*RowStream, error) {
	if !s.streamed.CompareAndSwap(false, true) {
		return nil, tabulaerrors.New(tabulaerrors.ErrorTypeSource, "dataset is single-pass and was already streamed").
			WithDetail("path", s.opts.Path)
	}

	ctx, cancel := context.WithCancel(ctx)
	records := make(chan *Record, s.opts.Prefetch)
	errs := make(chan error, 1)

	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer close(errs)
		defer close(records)

		if err := s.readRecords(ctx, records); err != nil {
			errs <- err
		}
	}()

	return &RowStream{Records: records, Errors: errs, cancel: cancel}, nil
}

// Close stops a running stream and releases the file.
func (s *Source) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return s.closeFile()
}

func (s *Source) openFile() error {
	file, err := os.Open(s.opts.Path)
	if err != nil {
		return tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeSource, "failed to open dataset").
			WithDetail("path", s.opts.Path)
	}

	alg := s.opts.Compression
	if alg == "" {
		alg = compression.FromExtension(s.opts.Path)
	}
	body, err := compression.NewReader(file, alg)
	if err != nil {
		_ = file.Close()
		return tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeSource, "failed to open compressed dataset").
			WithDetail("path", s.opts.Path).
			WithDetail("compression", string(alg))
	}

	s.file = file
	s.body = body
	s.reader = csv.NewReader(body)
	s.reader.Comma = s.opts.Delimiter
	s.reader.FieldsPerRecord = -1 // short rows leave trailing columns absent
	return nil
}

func (s *Source) closeFile() error {
	if s.file == nil {
		return nil
	}
	_ = s.body.Close()
	err := s.file.Close()
	s.file, s.body = nil, nil
	if err != nil {
		return tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeSource, "failed to close dataset")
	}
	return nil
}

func (s *Source) readHeader() error {
	first, err := s.reader.Read()
	if errors.Is(err, io.EOF) {
		// an empty file is an empty dataset, not a malformed one
		s.header = NewHeader(nil)
		return nil
	}
	if err != nil {
		return tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeSource, "failed to read first line").
			WithDetail("path", s.opts.Path)
	}

	var names []string
	if s.opts.HasHeader {
		names = make([]string, len(first))
		for i, n := range first {
			names[i] = strings.TrimSpace(n)
		}
		names[0] = strings.TrimPrefix(names[0], "\ufeff")
	} else {
		names = make([]string, len(first))
		for i := range first {
			names[i] = "column_" + strconv.Itoa(i)
		}
		s.pending = first
		s.pendLine, _ = s.reader.FieldPos(0)
	}

	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			return tabulaerrors.New(tabulaerrors.ErrorTypeSource, "header contains an empty column name").
				WithDetail("path", s.opts.Path)
		}
		if _, dup := seen[n]; dup {
			return tabulaerrors.New(tabulaerrors.ErrorTypeSource, "header contains a duplicate column").
				WithDetail("path", s.opts.Path).
				WithDetail("column", n)
		}
		seen[n] = struct{}{}
	}
	s.width = len(names)

	if s.opts.TargetColumn != "" {
		idx := -1
		for i, n := range names {
			if n == s.opts.TargetColumn {
				idx = i
				break
			}
		}
		if idx < 0 {
			return tabulaerrors.New(tabulaerrors.ErrorTypeConfig, "target column not found in dataset header").
				WithDetail("path", s.opts.Path).
				WithDetail("target_column", s.opts.TargetColumn)
		}
		s.targetIdx = idx
		names = append(names[:idx:idx], names[idx+1:]...)
	}

	s.header = NewHeader(names)
	return nil
}

func (s *Source) readRecords(ctx context.Context, out chan<- *Record) error {
	if s.pending != nil {
		rec, err := s.toRecord(s.pending, s.pendLine)
		s.pending = nil
		if err != nil {
			return err
		}
		if !send(ctx, out, rec) {
			return nil
		}
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		fields, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeSource, "failed to read row").
				WithDetail("path", s.opts.Path)
		}
		line, _ := s.reader.FieldPos(0)

		rec, err := s.toRecord(fields, line)
		if err != nil {
			return err
		}
		if !send(ctx, out, rec) {
			return nil
		}
	}
}

func send(ctx context.Context, out chan<- *Record, rec *Record) bool {
	select {
	case out <- rec:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Source) toRecord(fields []string, line int) (*Record, error) {
	if len(fields) > s.width {
		return nil, tabulaerrors.New(tabulaerrors.ErrorTypeSchemaMismatch, "row has more fields than the header").
			WithDetail("line", line).
			WithDetail("fields", len(fields)).
			WithDetail("columns", s.width)
	}

	rec := &Record{Line: line}
	if s.targetIdx < 0 {
		rec.Row = newRow(s.header, fields)
		return rec, nil
	}

	if s.targetIdx >= len(fields) {
		return nil, tabulaerrors.New(tabulaerrors.ErrorTypeInvalidValue, "row has no target value").
			WithDetail("line", line).
			WithDetail("column", s.opts.TargetColumn)
	}
	target, err := ParseNumber(fields[s.targetIdx])
	if err != nil {
		return nil, tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeInvalidValue, "target is not a number").
			WithDetail("line", line).
			WithDetail("column", s.opts.TargetColumn)
	}

	values := make([]string, 0, len(fields)-1)
	values = append(values, fields[:s.targetIdx]...)
	values = append(values, fields[s.targetIdx+1:]...)

	rec.Row = newRow(s.header, values)
	rec.Target = target
	rec.Labeled = true
	return rec, nil
}

// ParseNumber coerces a raw cell to a float64. Surrounding whitespace is
// ignored; an empty cell is an error.
func ParseNumber(raw string) (float64, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseFloat(v, 64)
}
