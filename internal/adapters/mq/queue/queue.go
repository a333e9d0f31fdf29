// Package queue buffers readings between the session machine and the
// delivery workers.
//
// Enqueue never blocks: a full or closed queue drops the reading, since a
// report must never hold up a measurement.
package queue

import (
	"context"
	"sync"

	"github.com/okian/vitalcam/internal/domain/model"
	"github.com/okian/vitalcam/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Reading is the payload type flowing through the queue.
type Reading = model.Reading

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a reading. It returns false if the reading was dropped.
	Enqueue(ctx context.Context, r Reading) bool

	// Dequeue returns a channel receiving readings as they become available.
	// The channel is closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Reading

	// Len returns the current number of queued readings.
	Len(ctx context.Context) int

	// Close stops accepting readings. Queued readings stay available to Dequeue.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	readings chan Reading
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.readings = make(chan Reading, q.capacity)

	metrics.UpdateReportQueueCapacity(q.capacity)
	metrics.UpdateReportQueueSize(0)
	return q
}

// Capacity returns the configured capacity.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Enqueue adds a reading to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r Reading) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordReportDropped()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	select {
	case <-ctx.Done():
		metrics.RecordReportDropped()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
	}

	select {
	case q.readings <- r:
		metrics.RecordReportEnqueued()
		metrics.UpdateReportQueueSize(len(q.readings))
		return true
	default:
		metrics.RecordReportDropped()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns a channel that receives readings as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Reading {
	out := make(chan Reading)
	go func() {
		defer close(out)
		for r := range q.readings {
			select {
			case out <- r:
				metrics.UpdateReportQueueSize(len(q.readings))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued readings.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.readings)
	metrics.UpdateReportQueueSize(size)
	return size
}

// Close stops accepting readings. It is safe to call more than once.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.readings)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
