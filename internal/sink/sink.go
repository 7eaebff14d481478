package sink

import (
	"context"

	"github.com/permscan/permscan/internal/model"
)

// Sink persists batches of scan output rows.
//
// Design decision: We use an interface to allow different output
// destinations. Each batch is homogeneous: every row in it has the
// given record kind. This lets implementations dispatch once per batch
// instead of once per row.
type Sink interface {
	// WriteBatch persists one homogeneous batch of rows.
	WriteBatch(ctx context.Context, kind model.RecordKind, rows []model.Record) error

	// Close flushes buffered data and releases resources.
	Close() error
}

// MultiSink writes every batch to multiple Sinks.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because sinks consume typed rows, not raw
// bytes. Writes stop at the first error so a failing destination is
// surfaced instead of silently dropped.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a Sink that writes to all provided Sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// WriteBatch writes the batch to every sink, stopping on first error.
func (m *MultiSink) WriteBatch(ctx context.Context, kind model.RecordKind, rows []model.Record) error {
	for _, s := range m.sinks {
		if err := s.WriteBatch(ctx, kind, rows); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink. All sinks are closed even when one fails;
// the first error is returned.
func (m *MultiSink) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
