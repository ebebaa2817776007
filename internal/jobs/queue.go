// Package jobs holds the generation-job backpressure queue. The engine
// only produces: requests are enqueued during a tick and drained under the
// scheduler's per-tick job budget; construction and consumption of the
// jobs themselves live elsewhere.
package jobs

import "sync"

// Request is one pending generation job.
type Request struct {
	WorldID   string         `json:"world_id"`
	SessionID string         `json:"session_id,omitempty"`
	AgentID   string         `json:"agent_id,omitempty"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Queue is a bounded in-memory pending queue. Overflow drops the request;
// producers treat a full queue as backpressure, not an error.
type Queue struct {
	mu      sync.Mutex
	pending []Request
	cap     int
	dropped uint64
}

// NewQueue creates a queue holding at most capacity pending requests.
// capacity <= 0 means unbounded.
func NewQueue(capacity int) *Queue {
	return &Queue{cap: capacity}
}

// Enqueue adds a request. Returns false when the queue is full.
func (q *Queue) Enqueue(r Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cap > 0 && len(q.pending) >= q.cap {
		q.dropped++
		return false
	}
	q.pending = append(q.pending, r)
	return true
}

// Drain removes and returns up to max pending requests in FIFO order.
// max <= 0 drains nothing.
func (q *Queue) Drain(max int) []Request {
	if max <= 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	n := min(max, len(q.pending))
	if n == 0 {
		return nil
	}
	out := make([]Request, n)
	copy(out, q.pending[:n])
	q.pending = append(q.pending[:0], q.pending[n:]...)
	return out
}

// Len returns the number of pending requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Dropped returns the number of requests rejected by the capacity bound.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
