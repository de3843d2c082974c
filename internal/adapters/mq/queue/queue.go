// Package queue buffers hardware commands between the orchestrator and the
// publishing workers. Enqueue never blocks: a full or closed queue drops the
// command and says so.
package queue

import (
	"context"
	"sync"

	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/pkg/metrics"
)

const defaultCapacity = 1024

// Command is the payload flowing through the queue.
type Command = model.HardwareCommand

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a command. It returns false when the command was dropped.
	Enqueue(ctx context.Context, c Command) bool
	// Dequeue returns a channel of commands, closed when the queue closes.
	Dequeue(ctx context.Context) <-chan Command
	// Len returns the number of pending commands.
	Len(ctx context.Context) int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	commands chan Command
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.commands = make(chan Command, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a command to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, c Command) bool { //nolint:gocritic // hugeParam: commands travel by value
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected("closed")
		return false
	}
	if ctx.Err() != nil {
		metrics.RecordQueueRejected("context_cancelled")
		return false
	}

	select {
	case q.commands <- c:
		metrics.UpdateQueueSize(len(q.commands))
		return true
	default:
		metrics.RecordQueueRejected("full")
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns a channel that receives commands as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Command {
	out := make(chan Command)
	go func() {
		defer close(out)
		for c := range q.commands {
			select {
			case out <- c:
				metrics.UpdateQueueSize(len(q.commands))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued commands.
func (q *InMemoryQueue) Len(context.Context) int {
	return len(q.commands)
}

// Close stops accepting commands. Pending commands are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.commands)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
