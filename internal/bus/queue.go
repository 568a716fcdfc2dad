package bus

import (
	"context"
	"sync"

	"github.com/yanun0323/errors"

	"github.com/CallistoLabsNYC/rp-transform-study/internal/broker"
)

var (
	ErrQueueFull   = errors.New("record queue full")
	ErrQueueClosed = errors.New("record queue closed")
)

// Queue is a bounded, non-blocking record queue between feed readers and
// the topic writer.
type Queue struct {
	mu     sync.RWMutex
	ch     chan broker.Record
	closed bool
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan broker.Record, capacity)}
}

// TryPublish enqueues a record without blocking.
func (q *Queue) TryPublish(r broker.Record) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- r:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len reports the number of queued records.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue from accepting new records. Queued records are still
// delivered by Run.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Run consumes records until the context is done or the queue is closed
// and drained.
func (q *Queue) Run(ctx context.Context, handler func(broker.Record)) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-q.ch:
			if !ok {
				return
			}
			handler(r)
		}
	}
}
