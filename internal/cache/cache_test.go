package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance cache time deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(cfg Config) (*Cache, *fakeClock) {
	c := New(cfg)
	clock := newFakeClock()
	c.now = clock.Now
	return c, clock
}

func TestGetMissOnAbsentKey(t *testing.T) {
	c, _ := newTestCache(Config{Capacity: 1024, MaxEntries: 10, TTL: time.Minute})

	_, ok := c.Get("nope")
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Misses)
}

func TestSetThenGetReturnsCopy(t *testing.T) {
	c, _ := newTestCache(Config{Capacity: 1024, MaxEntries: 10, TTL: time.Minute})

	payload := []byte("hello")
	require.True(t, c.Set("a.txt", payload))

	got, ok := c.Get("a.txt")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), got)

	// Mutating the returned slice must not corrupt the cached value.
	got[0] = 'X'
	got2, ok := c.Get("a.txt")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), got2)
}

func TestTTLExpiry(t *testing.T) {
	c, clock := newTestCache(Config{Capacity: 1024, MaxEntries: 10, TTL: 10 * time.Minute})

	require.True(t, c.Set("k", []byte("v")))

	clock.Advance(10*time.Minute - time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok, "entry should be a hit strictly before TTL")

	// The hit above reset the TTL clock.
	clock.Advance(10 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry should be a miss at TTL")
	assert.Equal(t, 0, c.Len(), "expired entry should be removed lazily")
	assert.Equal(t, int64(0), c.Size())
}

func TestAccessRefreshesAge(t *testing.T) {
	c, clock := newTestCache(Config{Capacity: 1024, MaxEntries: 10, TTL: 10 * time.Minute})

	require.True(t, c.Set("k", []byte("v")))

	for i := 0; i < 5; i++ {
		clock.Advance(9 * time.Minute)
		_, ok := c.Get("k")
		require.True(t, ok, "access %d should reset the TTL clock", i)
	}
}

func TestStaleGraceWindow(t *testing.T) {
	c, clock := newTestCache(Config{
		Capacity: 1024, MaxEntries: 10,
		TTL: time.Minute, StaleGrace: 30 * time.Second,
	})

	require.True(t, c.Set("k", []byte("v")))

	clock.Advance(time.Minute + 10*time.Second)
	got, ok := c.Get("k")
	assert.True(t, ok, "entry within grace window should be served")
	assert.Equal(t, []byte("v"), got)

	// Stale reads do not renew the TTL clock, so the entry still dies at
	// TTL+grace from the last fresh access no matter how often it is read.
	clock.Advance(10 * time.Second)
	_, ok = c.Get("k")
	assert.True(t, ok, "still within the grace window")

	clock.Advance(15 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry past grace window must be a miss")
}

func TestFreshSetRevalidatesStaleEntry(t *testing.T) {
	c, clock := newTestCache(Config{
		Capacity: 1024, MaxEntries: 10,
		TTL: time.Minute, StaleGrace: 30 * time.Second,
	})

	require.True(t, c.Set("k", []byte("v1")))
	clock.Advance(time.Minute + 10*time.Second)

	require.True(t, c.Set("k", []byte("v2")))
	clock.Advance(30 * time.Second)

	got, ok := c.Get("k")
	require.True(t, ok, "replacement restarts the TTL clock")
	assert.Equal(t, []byte("v2"), got)
}

func TestCapacityInvariant(t *testing.T) {
	const capacity = 100
	c, _ := newTestCache(Config{Capacity: capacity, MaxEntries: 8, TTL: time.Hour})

	for i := 0; i < 50; i++ {
		payload := make([]byte, 10+i%40)
		c.Set(fmt.Sprintf("key-%d", i), payload)
		assert.LessOrEqual(t, c.Size(), int64(capacity))
		assert.LessOrEqual(t, c.Len(), 8)
	}
}

func TestLRUEvictionOrder(t *testing.T) {
	// Three 10-byte entries fill the cache exactly.
	c, clock := newTestCache(Config{Capacity: 30, MaxEntries: 10, TTL: time.Hour})

	require.True(t, c.Set("a", make([]byte, 10)))
	clock.Advance(time.Second)
	require.True(t, c.Set("b", make([]byte, 10)))
	clock.Advance(time.Second)
	require.True(t, c.Set("c", make([]byte, 10)))
	clock.Advance(time.Second)

	// Touch "a" so "b" becomes the least recently used.
	_, ok := c.Get("a")
	require.True(t, ok)
	clock.Advance(time.Second)

	require.True(t, c.Set("d", make([]byte, 10)))

	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry should have been evicted")
	for _, key := range []string{"a", "c", "d"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "entry %q should survive", key)
	}
}

func TestEntryCountBound(t *testing.T) {
	c, clock := newTestCache(Config{Capacity: 1 << 20, MaxEntries: 3, TTL: time.Hour})

	for _, key := range []string{"a", "b", "c", "d"} {
		require.True(t, c.Set(key, []byte("x")))
		clock.Advance(time.Second)
	}

	assert.Equal(t, 3, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should be evicted by the count bound")
}

func TestOversizedPayloadRejected(t *testing.T) {
	c, _ := newTestCache(Config{Capacity: 10, MaxEntries: 10, TTL: time.Hour})

	require.True(t, c.Set("small", make([]byte, 10)))
	assert.False(t, c.Set("big", make([]byte, 11)))

	// The resident entry is untouched by the rejected insert.
	_, ok := c.Get("small")
	assert.True(t, ok)
	assert.Equal(t, int64(10), c.Size())
}

func TestReplaceReaccountsSize(t *testing.T) {
	c, _ := newTestCache(Config{Capacity: 100, MaxEntries: 10, TTL: time.Hour})

	require.True(t, c.Set("k", make([]byte, 40)))
	require.True(t, c.Set("k", make([]byte, 60)))

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(60), c.Size())
}

func TestInvalidate(t *testing.T) {
	c, _ := newTestCache(Config{Capacity: 100, MaxEntries: 10, TTL: time.Hour})

	require.True(t, c.Set("k", []byte("v")))
	assert.True(t, c.Invalidate("k"))
	assert.False(t, c.Invalidate("k"))

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestEvictionCallbackReasons(t *testing.T) {
	reasons := make(map[string]EvictReason)
	cfg := Config{
		Capacity: 20, MaxEntries: 10, TTL: time.Minute,
		OnEvict: func(key string, size int64, reason EvictReason) {
			reasons[key] = reason
		},
	}
	c, clock := newTestCache(cfg)

	require.True(t, c.Set("a", make([]byte, 10)))
	clock.Advance(time.Second)
	require.True(t, c.Set("b", make([]byte, 10)))
	clock.Advance(time.Second)

	// "a" is the LRU victim for the capacity bound.
	require.True(t, c.Set("c", make([]byte, 20)))
	assert.Equal(t, EvictCapacity, reasons["a"])
	assert.Equal(t, EvictCapacity, reasons["b"])

	require.True(t, c.Set("c", make([]byte, 5)))
	assert.Equal(t, EvictReplaced, reasons["c"])

	clock.Advance(2 * time.Minute)
	_, ok := c.Get("c")
	require.False(t, ok)
	assert.Equal(t, EvictExpired, reasons["c"])

	require.True(t, c.Set("d", []byte("x")))
	c.Invalidate("d")
	assert.Equal(t, EvictInvalidated, reasons["d"])
}

func TestConcurrentAccess(t *testing.T) {
	c := New(Config{Capacity: 1 << 16, MaxEntries: 100, TTL: time.Minute})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("key-%d", i%32)
				switch i % 3 {
				case 0:
					c.Set(key, make([]byte, 64))
				case 1:
					c.Get(key)
				default:
					c.Invalidate(key)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Size(), int64(1<<16))
	assert.LessOrEqual(t, c.Len(), 100)
}
