package query

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sam-thetutor/herlock/pkg/keylock"
	"github.com/sam-thetutor/herlock/pkg/metrics"
)

// ErrClosed is returned for reads against a torn-down client
var ErrClosed = errors.New("query client is closed")

// Client is a per-session cache of remote reads. Each key holds at most
// one in-flight fetch; concurrent reads for the same key attach to the
// pending result instead of issuing parallel fetches. Invalidation marks
// entries stale and bumps a per-key generation so a superseded completion
// never overwrites a fresher one.
type Client struct {
	mu      sync.RWMutex
	entries map[Key]*entry
	locks   *keylock.KeyLock
	metrics *metrics.Collector
	closed  bool
}

// entry is the cache record for one key. Only fetch completions mutate
// the data fields; observers read snapshots.
type entry struct {
	key         Key
	data        interface{}
	absent      bool
	fetched     bool
	err         error
	fetchedAt   time.Time
	stale       bool
	generation  uint64
	inflight    *inflight
	subscribers int
	fetcher     Fetcher
	opts        Options
	pollStop    chan struct{}
}

// inflight carries a pending fetch and its raw outcome for coalesced waiters
type inflight struct {
	done chan struct{}
	val  Value
	err  error
}

// NewClient creates a query client. The collector may be nil.
func NewClient(collector *metrics.Collector) *Client {
	return &Client{
		entries: make(map[Key]*entry),
		locks:   keylock.New(5 * time.Minute),
		metrics: collector,
	}
}

// Read returns the cached value for key if it is fresh, otherwise starts
// or joins the fetch for that key and waits for it. Fetch errors are
// reported inside the Result; the error return covers engine-level
// failures (closed client, cancelled context) only.
func (c *Client) Read(ctx context.Context, key Key, fetcher Fetcher, opts Options) (Result, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Result{}, ErrClosed
	}
	e := c.ensureEntryLocked(key, fetcher, opts)

	if e.freshLocked(time.Now()) {
		res := e.snapshotLocked()
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.RecordCacheHit()
		}
		return res, nil
	}

	var fl *inflight
	if e.inflight != nil {
		fl = e.inflight
		if c.metrics != nil {
			c.metrics.RecordCoalescedRead()
		}
	} else {
		fl = c.startFetchLocked(e)
		if c.metrics != nil {
			c.metrics.RecordCacheMiss()
		}
	}
	c.mu.Unlock()

	select {
	case <-fl.done:
	case <-ctx.Done():
		// the fetch keeps running and commits on its own
		return Result{}, ctx.Err()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[key]; ok {
		return e.snapshotLocked(), nil
	}

	// entry was disposed while waiting; hand back the raw fetch outcome
	if fl.err != nil {
		return Result{Err: fl.err}, nil
	}
	return Result{Data: fl.val.Data, Absent: fl.val.Absent, Fetched: true, FetchedAt: time.Now()}, nil
}

// Subscribe attaches an observer to a key. While at least one subscriber
// is attached and RefetchInterval is set, a per-key timer re-triggers the
// fetch; the timer stops when the last subscriber detaches and the entry
// is disposed.
func (c *Client) Subscribe(key Key, fetcher Fetcher, opts Options) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub := &Subscription{client: c, key: key}
	if c.closed {
		sub.done = true
		return sub
	}

	e := c.ensureEntryLocked(key, fetcher, opts)
	e.subscribers++

	if opts.RefetchInterval > 0 && e.pollStop == nil {
		stop := make(chan struct{})
		e.pollStop = stop
		go c.poll(key, opts.RefetchInterval, stop)
	}

	return sub
}

// Invalidate marks the named entries stale and, where subscribers are
// attached, immediately re-triggers their fetch exactly once. Keys outside
// the given set are never touched.
func (c *Client) Invalidate(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		e.stale = true
		e.generation++
		if e.inflight == nil && e.subscribers > 0 && e.fetcher != nil {
			c.startFetchLocked(e)
		}
		// with a fetch already in flight the bumped generation discards its
		// completion, which then chains the replacement fetch
	}
}

// Snapshot returns the current state of a key without fetching
func (c *Client) Snapshot(key Key) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	return e.snapshotLocked(), true
}

// Subscribers returns the observer count for a key
func (c *Client) Subscribers(key Key) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, ok := c.entries[key]; ok {
		return e.subscribers
	}
	return 0
}

// Size returns the number of cached entries
func (c *Client) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close tears the client down: polling stops and subsequent reads fail
// with ErrClosed. In-flight fetches complete and are discarded.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	for _, e := range c.entries {
		if e.pollStop != nil {
			close(e.pollStop)
			e.pollStop = nil
		}
	}
	c.entries = make(map[Key]*entry)
	c.locks.Stop()
}

// ensureEntryLocked returns the entry for key, creating it on first read.
// The fetcher and options are refreshed so polls use the latest ones.
func (c *Client) ensureEntryLocked(key Key, fetcher Fetcher, opts Options) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{key: key}
		c.entries[key] = e
	}
	if fetcher != nil {
		e.fetcher = fetcher
	}
	e.opts = opts
	return e
}

// startFetchLocked launches the single fetch for an entry. Callers must
// hold c.mu and have checked e.inflight == nil.
func (c *Client) startFetchLocked(e *entry) *inflight {
	fl := &inflight{done: make(chan struct{})}
	e.inflight = fl
	go c.runFetch(e.key, e.fetcher, e.generation, fl)
	return fl
}

// runFetch executes one fetch and commits its result if the entry still
// wants it. A completion whose generation predates the entry's current
// one, or whose entry was disposed while in flight, is discarded.
func (c *Client) runFetch(key Key, fetcher Fetcher, generation uint64, fl *inflight) {
	lock := c.locks.Get(string(key))
	lock.Lock()
	val, err := fetcher(context.Background())
	lock.Unlock()

	fl.val, fl.err = val, err

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.inflight == fl {
		e.inflight = nil
		if generation == e.generation {
			e.applyLocked(val, err)
		} else {
			if c.metrics != nil {
				c.metrics.RecordStaleDrop()
			}
			// invalidated mid-flight: chain the replacement fetch
			if e.subscribers > 0 && e.fetcher != nil {
				c.startFetchLocked(e)
			}
		}
	} else if c.metrics != nil {
		c.metrics.RecordStaleDrop()
	}
	c.mu.Unlock()

	close(fl.done)
}

// poll re-triggers the fetch for a key on a fixed interval while
// subscribers remain
func (c *Client) poll(key Key, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			if e, ok := c.entries[key]; ok && e.subscribers > 0 && e.inflight == nil && e.fetcher != nil {
				c.startFetchLocked(e)
			}
			c.mu.Unlock()
		case <-stop:
			return
		}
	}
}

// freshLocked reports whether the entry can be served without a fetch
func (e *entry) freshLocked(now time.Time) bool {
	if !e.fetched || e.stale {
		return false
	}
	if e.opts.StaleTime <= 0 {
		return false
	}
	return now.Sub(e.fetchedAt) < e.opts.StaleTime
}

// applyLocked commits a fetch outcome. Success replaces the data and
// clears the error; failure keeps the last good data so observers never
// lose what they were showing.
func (e *entry) applyLocked(val Value, err error) {
	if err != nil {
		e.err = err
		return
	}
	e.data = val.Data
	e.absent = val.Absent
	e.fetched = true
	e.err = nil
	e.fetchedAt = time.Now()
	e.stale = false
}

func (e *entry) snapshotLocked() Result {
	return Result{
		Data:      e.data,
		Absent:    e.absent,
		Fetched:   e.fetched,
		Loading:   e.inflight != nil && !e.fetched,
		Err:       e.err,
		FetchedAt: e.fetchedAt,
	}
}

// Subscription is a handle for one observer of a key
type Subscription struct {
	client *Client
	key    Key
	mu     sync.Mutex
	done   bool
}

// Unsubscribe detaches the observer. When the last subscriber detaches
// the poll timer is cancelled and the entry is disposed; an in-flight
// fetch completes but its result is discarded.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true

	c := s.client
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[s.key]
	if !ok {
		return
	}
	e.subscribers--
	if e.subscribers <= 0 {
		e.subscribers = 0
		if e.pollStop != nil {
			close(e.pollStop)
			e.pollStop = nil
		}
		delete(c.entries, s.key)
	}
}
