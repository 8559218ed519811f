package writer

import "sync"

// requestQueue is a thread-safe FIFO queue of writer requests.
//
// The queue is unbounded so that callers never block on enqueue; the
// writer drains it in order.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type requestQueue struct {
	mu       sync.Mutex
	requests []*request
	closed   bool
	signal   chan struct{} // Signals request availability (buffered, size 1)
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		requests: make([]*request, 0, 16),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a request to the back of the queue.
// Returns false if the queue is closed.
func (q *requestQueue) Enqueue(r *request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.requests = append(q.requests, r)

	// Non-blocking: the buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front request without blocking.
func (q *requestQueue) TryDequeue() (*request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return nil, false
	}

	r := q.requests[0]
	q.requests[0] = nil // release for GC
	if len(q.requests) == 1 {
		q.requests = q.requests[:0]
	} else {
		q.requests = q.requests[1:]
	}
	return r, true
}

// Wait returns a channel that signals when requests may be available.
// It is closed once the queue is closed.
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Close stops further enqueues and wakes waiters.
func (q *requestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Drain removes and returns everything still queued.
func (q *requestQueue) Drain() []*request {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.requests
	q.requests = nil
	return out
}
