package realtime

import (
	"sync"
	"time"
)

// RateLimiter bounds how many chat events one websocket session may emit
// inside a sliding window. Every envelope read off the wire counts: hello,
// message_send, typing. One instance guards one connection.
//
// Event times live in a fixed ring of size limit, so memory stays bounded
// regardless of how hard a client hammers the connection.
type RateLimiter struct {
	mu     sync.Mutex
	ring   []time.Time
	head   int // oldest recorded event
	count  int
	window time.Duration
}

// NewRateLimiter constructs a RateLimiter, falling back to the package
// defaults when limit or window is non-positive.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = rateLimitEvents
	}
	if window <= 0 {
		window = rateLimitWindow
	}
	return &RateLimiter{
		ring:   make([]time.Time, limit),
		window: window,
	}
}

// Allow reports whether an event at time "now" fits the budget, recording it
// when it does. An event is admitted when fewer than limit events happened
// strictly after now-window.
func (r *RateLimiter) Allow(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cut := now.Add(-r.window)
	for r.count > 0 && !r.ring[r.head].After(cut) {
		r.head = (r.head + 1) % len(r.ring)
		r.count--
	}

	if r.count == len(r.ring) {
		return false
	}
	r.ring[(r.head+r.count)%len(r.ring)] = now
	r.count++
	return true
}
