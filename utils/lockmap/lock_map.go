// Package lockmap provides a table of mutexes keyed by
// arbitrary comparable values. Entries are created on demand
// and dropped once nobody holds them and they have been idle
// for a while, so the table only grows with the set of keys
// touched recently.
package lockmap

import (
	"sync"
	"time"
)

const (
	// DefaultIdleTimeout is how long an unreferenced
	// handle stays in the table after its last use
	DefaultIdleTimeout = 10 * time.Minute
)

// Option configures a LockMap
type Option func(*LockMap)

// WithIdleTimeout sets how long an entry with no holders
// may sit unused before it becomes eligible for eviction.
// Non-positive values are ignored.
func WithIdleTimeout(idleTimeout time.Duration) Option {
	return func(lm *LockMap) {
		if idleTimeout > 0 {
			lm.idleTimeout = idleTimeout
		}
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(lm *LockMap) {
		lm.now = now
	}
}

// Handle is the mutual exclusion token for one key.
// A handle obtained from Acquire stays in the table
// until it is passed back to Release.
type Handle struct {
	sync.Mutex
	key        interface{}
	holders    int
	lastAccess time.Time
}

// Key returns the key this handle guards
func (handle *Handle) Key() interface{} {
	return handle.key
}

// LockMap maps keys to handles
type LockMap struct {
	mu          sync.Mutex
	locks       map[interface{}]*Handle
	idleTimeout time.Duration
	now         func() time.Time
	lastSweep   time.Time
}

// New creates an empty LockMap
func New(opts ...Option) *LockMap {
	lm := &LockMap{
		locks:       make(map[interface{}]*Handle),
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(lm)
	}

	lm.lastSweep = lm.now()

	return lm
}

// Acquire returns the handle for key, creating it if
// necessary, and registers the caller as a holder.
// Callers acquiring the same key while the handle is
// live receive the same *Handle. Every Acquire must be
// paired with exactly one Release.
func (lm *LockMap) Acquire(key interface{}) *Handle {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := lm.now()

	if now.Sub(lm.lastSweep) >= lm.idleTimeout {
		lm.evict(now)
	}

	handle, ok := lm.locks[key]

	if !ok {
		handle = &Handle{key: key}
		lm.locks[key] = handle
	}

	handle.holders++
	handle.lastAccess = now

	return handle
}

// Release unregisters the caller as a holder of handle.
// It does not unlock the handle.
func (lm *LockMap) Release(handle *Handle) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if handle.holders <= 0 {
		panic("Precondition failed: handle released more times than it was acquired")
	}

	handle.holders--
	handle.lastAccess = lm.now()
}

// Lock acquires the handle for key and locks it.
// The returned function unlocks and releases it.
func (lm *LockMap) Lock(key interface{}) func() {
	handle := lm.Acquire(key)
	handle.Lock()

	return func() {
		handle.Unlock()
		lm.Release(handle)
	}
}

// Evict removes every entry that has no holders and
// has not been accessed within the idle timeout. It
// returns the number of entries removed.
func (lm *LockMap) Evict() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	return lm.evict(lm.now())
}

// Len returns the number of entries in the table
func (lm *LockMap) Len() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	return len(lm.locks)
}

func (lm *LockMap) evict(now time.Time) int {
	evicted := 0

	for key, handle := range lm.locks {
		// A handle with holders must stay put, otherwise a
		// later Acquire could hand out a second handle for
		// the same key while the first one is still locked.
		if handle.holders > 0 || now.Sub(handle.lastAccess) < lm.idleTimeout {
			continue
		}

		delete(lm.locks, key)
		evicted++
	}

	lm.lastSweep = now

	return evicted
}
