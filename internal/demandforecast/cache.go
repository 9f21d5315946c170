package demandforecast

import (
	"fmt"
	"math"
	"time"

	"github.com/richxcame/taxi-demand/pkg/cache"
	"github.com/richxcame/taxi-demand/pkg/geo"
)

// DefaultPredictionTTL is how long a computed prediction is reused.
const DefaultPredictionTTL = 5 * time.Minute

// PredictionCache memoises predictions per quantised location, hour and
// weather code.
type PredictionCache struct {
	store *cache.TTLCache[PredictionResult]
}

// NewPredictionCache creates a cache. maxEntries <= 0 means unbounded.
func NewPredictionCache(ttl time.Duration, maxEntries int) *PredictionCache {
	if ttl <= 0 {
		ttl = DefaultPredictionTTL
	}
	return &PredictionCache{store: cache.New[PredictionResult](ttl, maxEntries)}
}

// WithNow overrides the clock. Intended for tests.
func (c *PredictionCache) WithNow(now func() time.Time) *PredictionCache {
	c.store.WithNow(now)
	return c
}

// PredictionCacheKey quantises the location to three decimals (about 100 m).
func PredictionCacheKey(loc geo.Coordinate, tm TimeContext, weatherCode int) string {
	return fmt.Sprintf("%d_%d_%d_%d",
		int64(math.Round(loc.Latitude*1000)),
		int64(math.Round(loc.Longitude*1000)),
		tm.HourOfDay,
		weatherCode,
	)
}

// Get returns the fresh prediction stored under key.
func (c *PredictionCache) Get(key string) (PredictionResult, bool) {
	return c.store.Get(key)
}

// Put stores result under key, replacing any stale entry.
func (c *PredictionCache) Put(key string, result PredictionResult) {
	c.store.Put(key, result)
}

// Purge drops expired predictions and returns how many were removed.
func (c *PredictionCache) Purge() int {
	return c.store.Purge(0)
}

// Len returns the number of stored entries, stale ones included.
func (c *PredictionCache) Len() int {
	return c.store.Len()
}
