package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds performance metrics for the gateway
type Metrics struct {
	// Request metrics
	TotalRequests      int64 `json:"total_requests"`
	SuccessfulRequests int64 `json:"successful_requests"`
	FailedRequests     int64 `json:"failed_requests"`

	// Response time metrics
	AverageResponseTime time.Duration `json:"average_response_time"`
	MinResponseTime     time.Duration `json:"min_response_time"`
	MaxResponseTime     time.Duration `json:"max_response_time"`

	// Query cache metrics
	CacheHits      int64 `json:"cache_hits"`
	CacheMisses    int64 `json:"cache_misses"`
	CoalescedReads int64 `json:"coalesced_reads"`
	StaleDrops     int64 `json:"stale_drops"`

	// Remote ledger metrics
	LedgerCalls       int64         `json:"ledger_calls"`
	LedgerFailures    int64         `json:"ledger_failures"`
	AverageLedgerTime time.Duration `json:"average_ledger_time"`

	// Mutation metrics
	Mutations          int64 `json:"mutations"`
	MutationRejections int64 `json:"mutation_rejections"`

	// Concurrency metrics
	ActiveRequests int64 `json:"active_requests"`

	// Internal fields for calculations
	totalResponseTime time.Duration
	totalLedgerTime   time.Duration
	mutex             sync.RWMutex
}

// Collector provides thread-safe metrics collection
type Collector struct {
	metrics   *Metrics
	startTime time.Time
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		metrics: &Metrics{
			MinResponseTime: time.Duration(^uint64(0) >> 1), // Max duration
		},
		startTime: time.Now(),
	}
}

// RecordRequest records a new request
func (c *Collector) RecordRequest() {
	atomic.AddInt64(&c.metrics.TotalRequests, 1)
	atomic.AddInt64(&c.metrics.ActiveRequests, 1)
}

// RecordRequestComplete records request completion
func (c *Collector) RecordRequestComplete(duration time.Duration, success bool) {
	atomic.AddInt64(&c.metrics.ActiveRequests, -1)

	if success {
		atomic.AddInt64(&c.metrics.SuccessfulRequests, 1)
	} else {
		atomic.AddInt64(&c.metrics.FailedRequests, 1)
	}

	c.metrics.mutex.Lock()
	defer c.metrics.mutex.Unlock()

	c.metrics.totalResponseTime += duration

	if duration < c.metrics.MinResponseTime {
		c.metrics.MinResponseTime = duration
	}

	if duration > c.metrics.MaxResponseTime {
		c.metrics.MaxResponseTime = duration
	}

	totalRequests := atomic.LoadInt64(&c.metrics.TotalRequests)
	if totalRequests > 0 {
		c.metrics.AverageResponseTime = c.metrics.totalResponseTime / time.Duration(totalRequests)
	}
}

// RecordCacheHit records a fresh cache entry served without a fetch
func (c *Collector) RecordCacheHit() {
	atomic.AddInt64(&c.metrics.CacheHits, 1)
}

// RecordCacheMiss records a read that required a fetch
func (c *Collector) RecordCacheMiss() {
	atomic.AddInt64(&c.metrics.CacheMisses, 1)
}

// RecordCoalescedRead records a read that attached to an in-flight fetch
func (c *Collector) RecordCoalescedRead() {
	atomic.AddInt64(&c.metrics.CoalescedReads, 1)
}

// RecordStaleDrop records a fetch completion discarded as superseded
func (c *Collector) RecordStaleDrop() {
	atomic.AddInt64(&c.metrics.StaleDrops, 1)
}

// RecordLedgerCall records a call to the remote ledger service
func (c *Collector) RecordLedgerCall(duration time.Duration, success bool) {
	atomic.AddInt64(&c.metrics.LedgerCalls, 1)

	if !success {
		atomic.AddInt64(&c.metrics.LedgerFailures, 1)
	}

	c.metrics.mutex.Lock()
	defer c.metrics.mutex.Unlock()

	c.metrics.totalLedgerTime += duration

	totalCalls := atomic.LoadInt64(&c.metrics.LedgerCalls)
	if totalCalls > 0 {
		c.metrics.AverageLedgerTime = c.metrics.totalLedgerTime / time.Duration(totalCalls)
	}
}

// RecordMutation records an executed mutation command
func (c *Collector) RecordMutation() {
	atomic.AddInt64(&c.metrics.Mutations, 1)
}

// RecordMutationRejection records a mutation rejected before reaching the ledger
func (c *Collector) RecordMutationRejection() {
	atomic.AddInt64(&c.metrics.MutationRejections, 1)
}

// GetMetrics returns a copy of current metrics
func (c *Collector) GetMetrics() *Metrics {
	c.metrics.mutex.RLock()
	defer c.metrics.mutex.RUnlock()

	// Create a copy to avoid race conditions
	return &Metrics{
		TotalRequests:       atomic.LoadInt64(&c.metrics.TotalRequests),
		SuccessfulRequests:  atomic.LoadInt64(&c.metrics.SuccessfulRequests),
		FailedRequests:      atomic.LoadInt64(&c.metrics.FailedRequests),
		AverageResponseTime: c.metrics.AverageResponseTime,
		MinResponseTime:     c.metrics.MinResponseTime,
		MaxResponseTime:     c.metrics.MaxResponseTime,
		CacheHits:           atomic.LoadInt64(&c.metrics.CacheHits),
		CacheMisses:         atomic.LoadInt64(&c.metrics.CacheMisses),
		CoalescedReads:      atomic.LoadInt64(&c.metrics.CoalescedReads),
		StaleDrops:          atomic.LoadInt64(&c.metrics.StaleDrops),
		LedgerCalls:         atomic.LoadInt64(&c.metrics.LedgerCalls),
		LedgerFailures:      atomic.LoadInt64(&c.metrics.LedgerFailures),
		AverageLedgerTime:   c.metrics.AverageLedgerTime,
		Mutations:           atomic.LoadInt64(&c.metrics.Mutations),
		MutationRejections:  atomic.LoadInt64(&c.metrics.MutationRejections),
		ActiveRequests:      atomic.LoadInt64(&c.metrics.ActiveRequests),
	}
}

// GetUptime returns the uptime since metrics collection started
func (c *Collector) GetUptime() time.Duration {
	return time.Since(c.startTime)
}

// Reset resets all metrics
func (c *Collector) Reset() {
	c.metrics.mutex.Lock()
	defer c.metrics.mutex.Unlock()

	atomic.StoreInt64(&c.metrics.TotalRequests, 0)
	atomic.StoreInt64(&c.metrics.SuccessfulRequests, 0)
	atomic.StoreInt64(&c.metrics.FailedRequests, 0)
	atomic.StoreInt64(&c.metrics.CacheHits, 0)
	atomic.StoreInt64(&c.metrics.CacheMisses, 0)
	atomic.StoreInt64(&c.metrics.CoalescedReads, 0)
	atomic.StoreInt64(&c.metrics.StaleDrops, 0)
	atomic.StoreInt64(&c.metrics.LedgerCalls, 0)
	atomic.StoreInt64(&c.metrics.LedgerFailures, 0)
	atomic.StoreInt64(&c.metrics.Mutations, 0)
	atomic.StoreInt64(&c.metrics.MutationRejections, 0)
	atomic.StoreInt64(&c.metrics.ActiveRequests, 0)

	c.metrics.AverageResponseTime = 0
	c.metrics.MinResponseTime = time.Duration(^uint64(0) >> 1)
	c.metrics.MaxResponseTime = 0
	c.metrics.AverageLedgerTime = 0
	c.metrics.totalResponseTime = 0
	c.metrics.totalLedgerTime = 0

	c.startTime = time.Now()
}

// GetCacheHitRatio returns the cache hit ratio as a percentage
func (c *Collector) GetCacheHitRatio() float64 {
	hits := atomic.LoadInt64(&c.metrics.CacheHits)
	misses := atomic.LoadInt64(&c.metrics.CacheMisses)
	total := hits + misses

	if total == 0 {
		return 0.0
	}

	return float64(hits) / float64(total) * 100.0
}

// GetSuccessRate returns the success rate as a percentage
func (c *Collector) GetSuccessRate() float64 {
	successful := atomic.LoadInt64(&c.metrics.SuccessfulRequests)
	total := atomic.LoadInt64(&c.metrics.TotalRequests)

	if total == 0 {
		return 0.0
	}

	return float64(successful) / float64(total) * 100.0
}
