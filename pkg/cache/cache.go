package cache

import (
	"container/list"
	"sync"
	"time"
)

// Entry is a cached value together with the instant it was stored.
type Entry[T any] struct {
	Value    T
	StoredAt time.Time
}

// Age returns how long ago the entry was stored relative to now.
func (e Entry[T]) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// TTLCache is an in-process key/value cache with a fixed time-to-live and an
// optional LRU bound. Expiry is lazy: an expired entry is a miss for Get but
// stays in place until the next Put for its key, Purge or eviction, so Peek
// can still serve it when the source is unavailable.
type TTLCache[T any] struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	now        func() time.Time
}

type item[T any] struct {
	key   string
	entry Entry[T]
}

// New creates a cache. maxEntries <= 0 means unbounded.
func New[T any](ttl time.Duration, maxEntries int) *TTLCache[T] {
	return &TTLCache[T]{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		now:        time.Now,
	}
}

// WithNow overrides the clock used for expiry checks. Intended for tests.
func (c *TTLCache[T]) WithNow(now func() time.Time) *TTLCache[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now != nil {
		c.now = now
	}
	return c
}

// TTL returns the configured time-to-live.
func (c *TTLCache[T]) TTL() time.Duration {
	return c.ttl
}

// Get returns the value for key if present and not older than the TTL.
// An entry is expired once its age strictly exceeds the TTL.
func (c *TTLCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	el, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	it := el.Value.(*item[T])
	if it.entry.Age(c.now()) > c.ttl {
		return zero, false
	}
	c.order.MoveToFront(el)
	return it.entry.Value, true
}

// Peek returns the stored entry regardless of age.
func (c *TTLCache[T]) Peek(key string) (Entry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return Entry[T]{}, false
	}
	return el.Value.(*item[T]).entry, true
}

// Put stores value under key, replacing any previous entry, and evicts the
// least recently used entry when the cache is over capacity.
func (c *TTLCache[T]) Put(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := Entry[T]{Value: value, StoredAt: c.now()}
	if el, ok := c.entries[key]; ok {
		el.Value.(*item[T]).entry = entry
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&item[T]{key: key, entry: entry})
	if c.maxEntries > 0 {
		for c.order.Len() > c.maxEntries {
			c.removeElement(c.order.Back())
		}
	}
}

// Purge drops every entry older than maxAge and returns how many were
// removed. A maxAge below the TTL is raised to it, so fresh entries are
// never purged.
func (c *TTLCache[T]) Purge(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if maxAge < c.ttl {
		maxAge = c.ttl
	}
	now := c.now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*item[T]).entry.Age(now) > maxAge {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *TTLCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *TTLCache[T]) removeElement(el *list.Element) {
	it := c.order.Remove(el).(*item[T])
	delete(c.entries, it.key)
}
