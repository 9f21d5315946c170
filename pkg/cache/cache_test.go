package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestTTLCache_GetPut(t *testing.T) {
	c := New[string](time.Minute, 0)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Put("a", "alpha")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", v)

	c.Put("a", "again")
	v, _ = c.Get("a")
	assert.Equal(t, "again", v)
	assert.Equal(t, 1, c.Len())
}

func TestTTLCache_ExpiresOnlyAfterTTL(t *testing.T) {
	clock := newFakeClock()
	c := New[int](5*time.Minute, 0).WithNow(clock.Now)

	c.Put("k", 42)

	clock.Advance(5 * time.Minute)
	v, ok := c.Get("k")
	require.True(t, ok, "entry aged exactly the TTL is still fresh")
	assert.Equal(t, 42, v)

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len(), "expired entry stays until overwritten")

	c.Put("k", 43)
	v, ok = c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 43, v)
}

func TestTTLCache_PeekReturnsStaleEntries(t *testing.T) {
	clock := newFakeClock()
	c := New[string](time.Minute, 0).WithNow(clock.Now)

	c.Put("k", "stale")
	clock.Advance(time.Hour)

	entry, ok := c.Peek("k")
	require.True(t, ok)
	assert.Equal(t, "stale", entry.Value)
	assert.Equal(t, time.Hour, entry.Age(clock.Now()))
}

func TestTTLCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[int](time.Hour, 2)

	c.Put("a", 1)
	c.Put("b", 2)
	_, _ = c.Get("a")
	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestTTLCache_Purge(t *testing.T) {
	clock := newFakeClock()
	c := New[int](time.Minute, 0).WithNow(clock.Now)

	c.Put("old", 1)
	clock.Advance(2 * time.Minute)
	c.Put("new", 2)

	assert.Equal(t, 1, c.Purge(0))
	assert.Equal(t, 1, c.Len())
	_, ok := c.Peek("old")
	assert.False(t, ok)
}

func TestTTLCache_PurgeKeepsStaleEntriesWithinMaxAge(t *testing.T) {
	clock := newFakeClock()
	c := New[int](time.Minute, 0).WithNow(clock.Now)

	c.Put("a", 1)
	clock.Advance(5 * time.Minute)
	c.Put("b", 2)

	assert.Equal(t, 0, c.Purge(10*time.Minute))
	_, ok := c.Get("a")
	assert.False(t, ok)
	entry, ok := c.Peek("a")
	require.True(t, ok)
	assert.Equal(t, 1, entry.Value)

	clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, c.Purge(10*time.Minute))
	_, ok = c.Peek("a")
	assert.False(t, ok)
	_, ok = c.Peek("b")
	assert.True(t, ok)
}

func TestTTLCache_ConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute, 64)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := string(rune('a' + (i+j)%26))
				c.Put(key, j)
				_, _ = c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 26)
}
