package session

import (
	"context"
	"time"

	"github.com/danmuck/plenty/internal/history"
	"github.com/danmuck/plenty/internal/observability"
)

// Batcher accumulates records and commits them through a Store in groups of
// at most size records.
type Batcher struct {
	store     Store
	size      int
	pending   []history.Record
	committed int
}

func NewBatcher(store Store, size int) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batcher{
		store:   store,
		size:    size,
		pending: make([]history.Record, 0, size),
	}
}

// Add buffers r and reports whether the batch reached its threshold.
func (b *Batcher) Add(r history.Record) bool {
	b.pending = append(b.pending, r)
	return len(b.pending) >= b.size
}

func (b *Batcher) Len() int {
	return len(b.pending)
}

// Committed counts records handed to successful commits, including ones the
// store ignored as already present.
func (b *Batcher) Committed() int {
	return b.committed
}

// Flush commits the pending records as one unit. They are cleared only
// when the commit succeeds.
func (b *Batcher) Flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	start := time.Now()
	if err := b.store.Commit(ctx, b.pending); err != nil {
		return err
	}
	observability.ObserveCommit(len(b.pending), time.Since(start))
	b.committed += len(b.pending)
	b.pending = b.pending[:0]
	return nil
}

// Discard drops pending records without committing and returns how many
// were dropped.
func (b *Batcher) Discard() int {
	n := len(b.pending)
	b.pending = b.pending[:0]
	return n
}
