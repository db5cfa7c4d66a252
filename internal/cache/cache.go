// Package cache provides a bounded in-memory blob cache with TTL expiry,
// LRU eviction and exact byte accounting. It performs no I/O; entries may
// be served stale within the configured grace window, never beyond it.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// EvictReason describes why an entry left the cache.
type EvictReason string

const (
	EvictCapacity    EvictReason = "capacity"
	EvictCount       EvictReason = "count"
	EvictExpired     EvictReason = "expired"
	EvictReplaced    EvictReason = "replaced"
	EvictInvalidated EvictReason = "invalidated"
)

// Config controls cache bounds and expiry behavior.
type Config struct {
	// Capacity is the maximum total payload size in bytes.
	Capacity int64

	// MaxEntries caps the number of entries, enforced independently of
	// Capacity.
	MaxEntries int

	// TTL is the expiry window. The clock resets on every successful Get.
	TTL time.Duration

	// StaleGrace, when positive, allows an expired entry to be served for
	// this long past its TTL. Off by default.
	StaleGrace time.Duration

	// OnEvict, if set, is called for every entry removed from the cache.
	// It runs outside the cache lock.
	OnEvict func(key string, size int64, reason EvictReason)
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
	Size      int64
}

type entry struct {
	key        string
	value      []byte
	size       int64
	insertedAt time.Time
	lastAccess time.Time
	elem       *list.Element
}

// Cache is a mutex-guarded LRU store. The zero value is not usable; use New.
type Cache struct {
	mu    sync.Mutex
	cfg   Config
	items map[string]*entry
	// order holds entries most-recently-used first. Within equal access
	// times (never observed in practice) list position preserves insertion
	// order, so the back of the list is always the eviction victim.
	order *list.List
	size  int64
	stats Stats

	now func() time.Time
}

// New creates a cache with the given bounds. Zero Capacity or MaxEntries
// mean unbounded in that dimension; zero TTL means entries never expire.
func New(cfg Config) *Cache {
	return &Cache{
		cfg:   cfg,
		items: make(map[string]*entry),
		order: list.New(),
		now:   time.Now,
	}
}

// Get returns a copy of the cached payload. Expired entries count as
// misses and are removed, unless they fall within the stale grace window.
// A hit resets the entry's TTL clock and marks it most recently used.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()

	e, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		c.mu.Unlock()
		return nil, false
	}

	if age := c.now().Sub(e.lastAccess); c.cfg.TTL > 0 && age >= c.cfg.TTL {
		if c.cfg.StaleGrace <= 0 || age >= c.cfg.TTL+c.cfg.StaleGrace {
			c.removeLocked(e)
			c.stats.Misses++
			c.mu.Unlock()
			c.notify(e, EvictExpired)
			return nil, false
		}
		// Stale but within grace: serve without resetting the TTL clock
		// or recency, so the entry still dies at TTL+grace absent a
		// fresh Set.
		c.stats.Hits++
		value := make([]byte, len(e.value))
		copy(value, e.value)
		c.mu.Unlock()
		return value, true
	}

	e.lastAccess = c.now()
	c.order.MoveToFront(e.elem)
	c.stats.Hits++

	value := make([]byte, len(e.value))
	copy(value, e.value)
	c.mu.Unlock()
	return value, true
}

// Set stores a payload under key, evicting least-recently-used entries
// until both the byte and entry-count bounds hold. A payload that alone
// exceeds the byte capacity is rejected and Set returns false.
func (c *Cache) Set(key string, value []byte) bool {
	size := int64(len(value))
	if c.cfg.Capacity > 0 && size > c.cfg.Capacity {
		return false
	}

	c.mu.Lock()

	var evicted []evictedEntry
	if old, ok := c.items[key]; ok {
		c.removeLocked(old)
		evicted = append(evicted, evictedEntry{old, EvictReplaced})
	}

	// Eviction is decided under the same lock as the bounds check so the
	// invariants hold under concurrent insertions.
	for c.cfg.Capacity > 0 && c.size+size > c.cfg.Capacity {
		victim := c.order.Back()
		if victim == nil {
			break
		}
		e := victim.Value.(*entry)
		c.removeLocked(e)
		c.stats.Evictions++
		evicted = append(evicted, evictedEntry{e, EvictCapacity})
	}
	for c.cfg.MaxEntries > 0 && len(c.items) >= c.cfg.MaxEntries {
		victim := c.order.Back()
		if victim == nil {
			break
		}
		e := victim.Value.(*entry)
		c.removeLocked(e)
		c.stats.Evictions++
		evicted = append(evicted, evictedEntry{e, EvictCount})
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	now := c.now()
	e := &entry{key: key, value: stored, size: size, insertedAt: now, lastAccess: now}
	e.elem = c.order.PushFront(e)
	c.items[key] = e
	c.size += size

	c.mu.Unlock()
	for _, ev := range evicted {
		c.notify(ev.entry, ev.reason)
	}
	return true
}

// Invalidate removes an entry, reporting whether it was present.
func (c *Cache) Invalidate(key string) bool {
	c.mu.Lock()
	e, ok := c.items[key]
	if ok {
		c.removeLocked(e)
	}
	c.mu.Unlock()
	if ok {
		c.notify(e, EvictInvalidated)
	}
	return ok
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Size returns the current total payload size in bytes.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.items)
	s.Size = c.size
	return s
}

type evictedEntry struct {
	entry  *entry
	reason EvictReason
}

func (c *Cache) removeLocked(e *entry) {
	delete(c.items, e.key)
	c.order.Remove(e.elem)
	c.size -= e.size
}

func (c *Cache) notify(e *entry, reason EvictReason) {
	if c.cfg.OnEvict != nil {
		c.cfg.OnEvict(e.key, e.size, reason)
	}
}
