package ratelimiter

import (
	"sync"
	"time"
)

// counter tracks request count and window reset time for a client
type counter struct {
	count     int
	resetTime time.Time
}

// RateLimiter implements per-client rate limiting with in-memory tracking
type RateLimiter struct {
	clients map[string]*counter
	mutex   sync.Mutex
	limit   int
	window  time.Duration
}

// New creates a new RateLimiter with the specified limit and window
func New(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*counter),
		limit:   limit,
		window:  window,
	}
}

// Allow reports whether the client may make a request, counting it if so
func (rl *RateLimiter) Allow(client string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()

	c, exists := rl.clients[client]
	if !exists || now.After(c.resetTime) {
		rl.clients[client] = &counter{
			count:     1,
			resetTime: now.Add(rl.window),
		}
		return true
	}

	if c.count >= rl.limit {
		return false
	}

	c.count++
	return true
}

// Limit returns the configured request limit per window
func (rl *RateLimiter) Limit() int {
	return rl.limit
}

// Status returns the current count and reset time for a client
func (rl *RateLimiter) Status(client string) (int, time.Time) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	c, exists := rl.clients[client]
	if !exists {
		return 0, time.Now().Add(rl.window)
	}
	return c.count, c.resetTime
}

// Cleanup removes expired client counters
func (rl *RateLimiter) Cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	for client, c := range rl.clients {
		if now.After(c.resetTime) {
			delete(rl.clients, client)
		}
	}
}
