// Package outbox provides the bounded outbound event queue that sits between
// the relay core and one connection's write loop.
package outbox

import (
	"errors"
	"sync"

	"github.com/lemonmeet/meet-relay/internal/protocol"
)

var (
	// ErrFull is returned when the queue is at capacity. Senders treat this
	// as backpressure; the event is not dropped silently.
	ErrFull = errors.New("outbox full")

	// ErrClosed is returned after Close; the connection is gone and pending
	// deliveries to it fail.
	ErrClosed = errors.New("outbox closed")
)

// Queue is a fixed-capacity, non-blocking event queue. One goroutine (the
// connection's write loop) drains Events; any goroutine may TryEnqueue.
type Queue struct {
	mu     sync.Mutex
	ch     chan protocol.ServerEvent
	closed bool
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan protocol.ServerEvent, capacity)}
}

// TryEnqueue offers ev to the queue without blocking.
func (q *Queue) TryEnqueue(ev protocol.ServerEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	select {
	case q.ch <- ev:
		return nil
	default:
		return ErrFull
	}
}

// Events is drained by the connection's write loop. The channel is closed by
// Close, after which the write loop ends.
func (q *Queue) Events() <-chan protocol.ServerEvent {
	return q.ch
}

// Close rejects all further enqueues and closes the Events channel. Events
// already enqueued remain readable. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
