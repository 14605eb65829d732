// Package sink defines the destination for assembled records.
package sink

import (
	"context"
	"sync/atomic"

	"github.com/logsift/logsift/internal/model"
)

// Sink accepts one assembled record at a time. Implementations must not
// fail for a structurally valid record; an error is treated as a file
// fault by the caller and quarantines the file being processed.
type Sink interface {
	// Insert hands one record to the sink. The context bounds the call;
	// implementations should respect cancellation.
	Insert(ctx context.Context, rec *model.Record) error
}

// Func adapts a function to the Sink interface.
type Func func(ctx context.Context, rec *model.Record) error

// Insert implements Sink.
func (f Func) Insert(ctx context.Context, rec *model.Record) error {
	return f(ctx, rec)
}

// Counting is a counter-only sink. It accepts every record and counts
// it, useful for dry runs and as the default when no database is
// configured.
type Counting struct {
	n atomic.Int64
}

// NewCounting creates a counter-only sink.
func NewCounting() *Counting {
	return &Counting{}
}

// Insert implements Sink.
func (s *Counting) Insert(ctx context.Context, rec *model.Record) error {
	s.n.Add(1)
	return nil
}

// Count returns the number of records accepted.
func (s *Counting) Count() int64 {
	return s.n.Load()
}
