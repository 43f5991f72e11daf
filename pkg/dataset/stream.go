package dataset

import (
	"context"
	"sync"

	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

// RowStream is a lazy, finite, single-pass sequence of records produced by a
// background reader. The producer sends at most one error, before Records
// is closed.
type RowStream struct {
	Records <-chan *Record
	Errors  <-chan error

	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Close stops the producer. It is safe to call more than once.
func (s *RowStream) Close() {
	s.closeOnce.Do(s.cancel)
}

// Drain folds fn over every record of stream in order. It stops at the first
// error returned by fn, by the producer, or by ctx, and always closes stream.
func Drain(ctx context.Context, stream *RowStream, fn func(*Record) error) error {
	defer stream.Close()

	for {
		select {
		case <-ctx.Done():
			return Canceled(ctx.Err())
		case rec, ok := <-stream.Records:
			if !ok {
				if err, ok := <-stream.Errors; ok && err != nil {
					return err
				}
				if err := ctx.Err(); err != nil {
					return Canceled(err)
				}
				return nil
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
	}
}

// Canceled wraps a context error as a cancellation of the run.
func Canceled(err error) error {
	return tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeCanceled, "run canceled between rows")
}
