package lockmap_test

import (
	"sync"
	"testing"
	"time"

	"github.com/jrife/confstore/utils/lockmap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (clock *fakeClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()

	return clock.now
}

func (clock *fakeClock) Advance(d time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()

	clock.now = clock.now.Add(d)
}

type resource struct {
	name   string
	tenant string
}

func newLockMap() (*lockmap.LockMap, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}

	return lockmap.New(lockmap.WithIdleTimeout(time.Minute), lockmap.WithClock(clock.Now)), clock
}

func TestAcquireSameKey(t *testing.T) {
	lm, _ := newLockMap()

	a := lm.Acquire(resource{"svc", "t1"})
	b := lm.Acquire(resource{"svc", "t1"})
	c := lm.Acquire(resource{"svc", "t2"})

	if a != b {
		t.Fatalf("expected structurally equal keys to share a handle")
	}

	if a == c {
		t.Fatalf("expected different keys to get different handles")
	}

	if lm.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", lm.Len())
	}

	lm.Release(a)
	lm.Release(b)
	lm.Release(c)
}

func TestEvictIdle(t *testing.T) {
	lm, clock := newLockMap()

	lm.Release(lm.Acquire(resource{"svc", "t1"}))
	clock.Advance(30 * time.Second)

	if n := lm.Evict(); n != 0 {
		t.Fatalf("expected nothing to be evicted before the idle timeout, got %d", n)
	}

	clock.Advance(30 * time.Second)

	if n := lm.Evict(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}

	if lm.Len() != 0 {
		t.Fatalf("expected empty table, got %d entries", lm.Len())
	}
}

func TestEvictNeverRemovesHeldHandle(t *testing.T) {
	lm, clock := newLockMap()
	key := resource{"svc", "t1"}

	held := lm.Acquire(key)
	held.Lock()

	clock.Advance(time.Hour)

	if n := lm.Evict(); n != 0 {
		t.Fatalf("expected a held handle to survive eviction, got %d evictions", n)
	}

	// A second writer arriving long after the idle timeout must
	// still be handed the handle the first writer holds.
	second := lm.Acquire(key)

	if second != held {
		t.Fatalf("expected the live handle to be reused")
	}

	held.Unlock()
	lm.Release(held)
	lm.Release(second)

	clock.Advance(time.Hour)

	if n := lm.Evict(); n != 1 {
		t.Fatalf("expected 1 eviction once released, got %d", n)
	}
}

func TestAcquireSweeps(t *testing.T) {
	lm, clock := newLockMap()

	for _, tenant := range []string{"t1", "t2", "t3"} {
		lm.Release(lm.Acquire(resource{"svc", tenant}))
	}

	clock.Advance(2 * time.Minute)

	handle := lm.Acquire(resource{"svc", "t4"})
	defer lm.Release(handle)

	if lm.Len() != 1 {
		t.Fatalf("expected idle entries to be swept on acquire, got %d entries", lm.Len())
	}
}

func TestLockMutualExclusion(t *testing.T) {
	lm := lockmap.New()
	key := resource{"svc", "t1"}
	counter := 0
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			unlock := lm.Lock(key)
			defer unlock()

			current := counter
			time.Sleep(time.Microsecond)
			counter = current + 1
		}()
	}

	wg.Wait()

	if counter != 50 {
		t.Fatalf("expected counter to be 50, got %d", counter)
	}

	if lm.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", lm.Len())
	}
}

func TestReleaseTooManyTimes(t *testing.T) {
	lm, _ := newLockMap()
	handle := lm.Acquire(resource{"svc", "t1"})
	lm.Release(handle)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected Release to panic")
		}
	}()

	lm.Release(handle)
}
