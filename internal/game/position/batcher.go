package position

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store persists a batch of character positions atomically.
type Store interface {
	SavePositions(ctx context.Context, batch map[int64]Update) error
}

// Batcher drains the buffer on a fixed period and writes each non-empty
// batch to the store in a single transaction. A failed write is logged and
// its entries are not re-queued: only moves arriving afterwards repopulate
// the buffer, so re-delivered stale positions can never overwrite fresher
// client state.
type Batcher struct {
	buffer   *Buffer
	store    Store
	interval time.Duration
	logger   *zap.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// NewBatcher creates a Batcher flushing buffer into store every interval.
//
// Precondition: buffer, store, and logger must be non-nil; interval must be positive.
func NewBatcher(buffer *Buffer, store Store, interval time.Duration, logger *zap.Logger) *Batcher {
	return &Batcher{
		buffer:   buffer,
		store:    store,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs the flush loop until Stop is called. Implements server.Service.
//
// Postcondition: Returns nil after Stop; a final flush has been attempted.
func (b *Batcher) Start() error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.Flush(context.Background())
		case <-b.done:
			// Drain whatever arrived since the last tick before shutdown.
			b.Flush(context.Background())
			return nil
		}
	}
}

// Stop terminates the flush loop. Idempotent.
func (b *Batcher) Stop() {
	b.stopOnce.Do(func() { close(b.done) })
}

// Flush writes the current pending batch, if any, to the store.
//
// Postcondition: The buffer is empty. On store failure the batch is dropped
// and the failure logged; no client observes the error.
func (b *Batcher) Flush(ctx context.Context) {
	batch := b.buffer.Drain()
	if len(batch) == 0 {
		return
	}

	start := time.Now()
	if err := b.store.SavePositions(ctx, batch); err != nil {
		b.logger.Error("position batch flush failed",
			zap.Int("characters", len(batch)),
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)),
		)
		return
	}

	b.logger.Debug("position batch flushed",
		zap.Int("characters", len(batch)),
		zap.Duration("elapsed", time.Since(start)),
	)
}
