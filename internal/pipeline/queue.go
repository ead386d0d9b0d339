// Package pipeline buffers watcher events and dispatches them to the
// reconciliation engine in debounced, size-capped batches.
package pipeline

import (
	"context"
	"sync"

	"github.com/pixelgrove/photosync/internal/types"
)

// Queue is an unbounded FIFO of file events. Push never blocks and
// never drops while the queue is open, so a burst of thousands of
// watcher events cannot stall the watch loop. One consumer drains it;
// any number of producers may push.
type Queue struct {
	mu     sync.Mutex
	events []types.FileEvent
	wake   chan struct{}
	closed bool
}

func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Push appends an event. After Close it silently discards; events
// arriving during shutdown have nowhere left to go.
func (q *Queue) Push(ev types.FileEvent) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.events = append(q.events, ev)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// TryPop removes and returns the head event without blocking.
func (q *Queue) TryPop() (types.FileEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return types.FileEvent{}, false
	}
	ev := q.events[0]
	q.events = q.events[1:]
	if len(q.events) == 0 {
		q.events = nil // release the drained backing array
	}
	return ev, true
}

// PopWait blocks until an event is available or ctx is done. The
// second return is false only on ctx expiry.
func (q *Queue) PopWait(ctx context.Context) (types.FileEvent, bool) {
	for {
		if ev, ok := q.TryPop(); ok {
			return ev, true
		}
		select {
		case <-ctx.Done():
			return types.FileEvent{}, false
		case <-q.wake:
		}
	}
}

// Len reports the exact number of pending events, surfaced on the
// stats endpoint.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close makes further pushes no-ops. Events already queued stay
// poppable for the shutdown drain.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
