package queue

import "time"

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum capacity of the queue.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithRetryInterval sets how long EnqueueWait sleeps between attempts on a
// full queue.
func WithRetryInterval(d time.Duration) Option {
	return func(q *InMemoryQueue) {
		if d > 0 {
			q.retryInterval = d
		}
	}
}
