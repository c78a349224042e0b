package storage

import (
	"database/sql"
	"sync"
)

// WriteOp is one queued mutation for the batch ingest path.
type WriteOp struct {
	Query string
	Args  []interface{}

	// ack, when set, marks a flush barrier: the batch accumulated so far
	// commits, then ack closes. Barrier ops carry no SQL.
	ack chan struct{}
}

// Batcher feeds a dedicated writer goroutine through a bounded channel.
// Producers block when the channel fills, which is the backpressure
// contract. Ops are grouped into transactions of up to batchSize rows.
type Batcher struct {
	store     *Store
	ch        chan WriteOp
	batchSize int

	closeOnce sync.Once
	done      chan struct{}

	mu      sync.Mutex
	lastErr error
}

func newBatcher(store *Store, capacity, batchSize int) *Batcher {
	if capacity <= 0 {
		capacity = 1024
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	b := &Batcher{
		store:     store,
		ch:        make(chan WriteOp, capacity),
		batchSize: batchSize,
		done:      make(chan struct{}),
	}
	go b.run()
	return b
}

// Enqueue queues op for the writer goroutine, blocking when the channel
// is full.
func (b *Batcher) Enqueue(query string, args ...interface{}) {
	b.ch <- WriteOp{Query: query, Args: args}
}

// run drains the channel, committing up to batchSize ops per transaction.
// It exits only after the channel closes and every queued item commits.
func (b *Batcher) run() {
	defer close(b.done)

	batch := make([]WriteOp, 0, b.batchSize)
	flush := func() {
		b.commit(batch)
		batch = batch[:0]
	}

	for op := range b.ch {
		if op.ack != nil {
			flush()
			close(op.ack)
			continue
		}
		batch = append(batch, op)

		// Opportunistically drain without blocking to fill the batch.
	fill:
		for len(batch) < b.batchSize {
			select {
			case next, ok := <-b.ch:
				if !ok {
					flush()
					return
				}
				if next.ack != nil {
					flush()
					close(next.ack)
					break fill
				}
				batch = append(batch, next)
			default:
				break fill
			}
		}

		// Commit whatever accumulated; the channel is either empty or the
		// batch is full, and holding rows across an idle channel would
		// stall readers of just-scanned files.
		flush()
	}
	flush()
}

func (b *Batcher) commit(batch []WriteOp) {
	if len(batch) == 0 {
		return
	}
	err := b.store.WithWriteTx(func(tx *sql.Tx) error {
		for _, op := range batch {
			if _, err := tx.Exec(op.Query, op.Args...); err != nil {
				return mapSQLiteErr(err)
			}
		}
		return nil
	})
	if err != nil {
		b.mu.Lock()
		if b.lastErr == nil {
			b.lastErr = err
		}
		b.mu.Unlock()
		b.store.logger.Error("batch commit failed", map[string]interface{}{
			"batch_size": len(batch),
			"error":      err.Error(),
		})
	}
}

// Flush blocks until every op enqueued before the call has committed.
func (b *Batcher) Flush() error {
	ack := make(chan struct{})
	b.ch <- WriteOp{ack: ack}
	<-ack
	return b.Err()
}

// Err returns the first batch error observed since open or the last ResetErr.
func (b *Batcher) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// ResetErr clears the sticky batch error between scans.
func (b *Batcher) ResetErr() {
	b.mu.Lock()
	b.lastErr = nil
	b.mu.Unlock()
}

// Close closes the channel and waits for the writer goroutine to finish
// committing everything still queued.
func (b *Batcher) Close() {
	b.closeOnce.Do(func() {
		close(b.ch)
	})
	<-b.done
}
