package keylock

import (
	"sync"
	"sync/atomic"
	"time"
)

// KeyLock provides per-key mutex locking so concurrent fetches for the
// same query key serialize instead of racing the remote service.
type KeyLock struct {
	locks      map[string]*lockEntry
	mapMutex   sync.RWMutex
	cleanupTTL time.Duration
	stopCh     chan struct{}
	stopped    bool
	stopMutex  sync.Mutex
}

// lockEntry holds a mutex and its last access time for cleanup. The
// access time is atomic so concurrent Gets under the read lock can
// touch it without racing.
type lockEntry struct {
	mutex      *sync.Mutex
	lastAccess atomic.Int64 // unix nanoseconds
}

// New creates a new KeyLock instance with automatic cleanup
func New(cleanupTTL time.Duration) *KeyLock {
	kl := &KeyLock{
		locks:      make(map[string]*lockEntry),
		cleanupTTL: cleanupTTL,
		stopCh:     make(chan struct{}),
	}

	go kl.cleanup()

	return kl
}

// Get returns the mutex for the given key, creating one if it doesn't exist
func (kl *KeyLock) Get(key string) *sync.Mutex {
	kl.mapMutex.RLock()
	entry, exists := kl.locks[key]
	if exists {
		entry.lastAccess.Store(time.Now().UnixNano())
		kl.mapMutex.RUnlock()
		return entry.mutex
	}
	kl.mapMutex.RUnlock()

	kl.mapMutex.Lock()
	defer kl.mapMutex.Unlock()

	// Double-check in case another goroutine created it
	if entry, exists := kl.locks[key]; exists {
		entry.lastAccess.Store(time.Now().UnixNano())
		return entry.mutex
	}

	newEntry := &lockEntry{mutex: &sync.Mutex{}}
	newEntry.lastAccess.Store(time.Now().UnixNano())
	kl.locks[key] = newEntry

	return newEntry.mutex
}

// Size returns the number of locks currently stored
func (kl *KeyLock) Size() int {
	kl.mapMutex.RLock()
	defer kl.mapMutex.RUnlock()
	return len(kl.locks)
}

// cleanup runs periodically to remove unused locks to prevent memory leaks
func (kl *KeyLock) cleanup() {
	ticker := time.NewTicker(kl.cleanupTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			kl.removeUnused()
		case <-kl.stopCh:
			return
		}
	}
}

// removeUnused removes locks that haven't been accessed recently
func (kl *KeyLock) removeUnused() {
	kl.mapMutex.Lock()
	defer kl.mapMutex.Unlock()

	now := time.Now().UnixNano()
	for key, entry := range kl.locks {
		if now-entry.lastAccess.Load() > int64(kl.cleanupTTL) {
			// Only remove locks not currently held
			if entry.mutex.TryLock() {
				entry.mutex.Unlock()
				delete(kl.locks, key)
			}
		}
	}
}

// Stop stops the cleanup goroutine
func (kl *KeyLock) Stop() {
	kl.stopMutex.Lock()
	defer kl.stopMutex.Unlock()

	if !kl.stopped {
		kl.stopped = true
		close(kl.stopCh)
	}
}
