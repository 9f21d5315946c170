package demandforecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/richxcame/taxi-demand/pkg/cache"
	"github.com/richxcame/taxi-demand/pkg/config"
	apperrors "github.com/richxcame/taxi-demand/pkg/errors"
	"github.com/richxcame/taxi-demand/pkg/geo"
	"github.com/richxcame/taxi-demand/pkg/logger"
	"github.com/richxcame/taxi-demand/pkg/ratelimit"
	"github.com/richxcame/taxi-demand/pkg/resilience"
	"go.uber.org/zap"
)

// WeatherClientConfig holds the request budget and cache settings
type WeatherClientConfig struct {
	RateLimit  int
	RateWindow time.Duration
	CacheTTL   time.Duration
	Timeout    time.Duration
	// StaleTTL bounds how long an expired reading is kept as a fallback.
	StaleTTL   time.Duration
}

// DefaultWeatherClientConfig returns 50 requests per minute, a 10 minute
// cache, an 8 second fetch timeout and one hour of stale fallback.
func DefaultWeatherClientConfig() WeatherClientConfig {
	return WeatherClientConfig{
		RateLimit:  50,
		RateWindow: time.Minute,
		CacheTTL:   10 * time.Minute,
		Timeout:    time.Duration(config.DefaultWeatherTimeoutSeconds) * time.Second,
		StaleTTL:   time.Hour,
	}
}

// WeatherClientConfigFrom maps the loaded configuration.
func WeatherClientConfigFrom(cfg config.WeatherConfig) WeatherClientConfig {
	return WeatherClientConfig{
		RateLimit:  cfg.RateLimit,
		RateWindow: cfg.RateWindow(),
		CacheTTL:   cfg.CacheTTL(),
		Timeout:    cfg.WeatherTimeout(),
	}
}

// WeatherOrigin says where a reading served by WeatherClient came from.
type WeatherOrigin string

const (
	OriginCache    WeatherOrigin = "cache"
	OriginProvider WeatherOrigin = "provider"
	OriginStale    WeatherOrigin = "stale"
	OriginFallback WeatherOrigin = "fallback"
)

// Cached reports whether the reading was served from the cache, fresh or not.
func (o WeatherOrigin) Cached() bool {
	return o == OriginCache || o == OriginStale
}

// WeatherClientStats is a point-in-time view of the client.
type WeatherClientStats struct {
	Provider        string `json:"provider"`
	CachedLocations int    `json:"cached_locations"`
	RemainingBudget int    `json:"remaining_budget"`
	RateLimit       int    `json:"rate_limit"`
}

// WeatherClient puts a cache and a request budget in front of a provider.
// It never fails: when the provider cannot be asked or does not answer, the
// last known reading for the location or FallbackWeather is served.
type WeatherClient struct {
	provider WeatherProvider
	cfg      WeatherClientConfig
	cache    *cache.TTLCache[WeatherReading]
	window   *ratelimit.Window
	log      *zap.Logger
}

// NewWeatherClient creates a client. Zero config values take the defaults.
func NewWeatherClient(provider WeatherProvider, cfg WeatherClientConfig) *WeatherClient {
	defaults := DefaultWeatherClientConfig()
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaults.RateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = defaults.RateWindow
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.StaleTTL <= 0 {
		cfg.StaleTTL = defaults.StaleTTL
	}

	return &WeatherClient{
		provider: provider,
		cfg:      cfg,
		cache:    cache.New[WeatherReading](cfg.CacheTTL, 0),
		window:   ratelimit.NewWindow(cfg.RateLimit, cfg.RateWindow),
		log:      logger.Named("weather").With(zap.String("provider", provider.Name())),
	}
}

// WithNow overrides the clock of the cache and the budget window.
func (c *WeatherClient) WithNow(now func() time.Time) *WeatherClient {
	c.cache.WithNow(now)
	c.window.WithNow(now)
	return c
}

// GetCurrentWeather returns the weather at loc.
func (c *WeatherClient) GetCurrentWeather(ctx context.Context, loc geo.Coordinate) WeatherReading {
	reading, _ := c.Lookup(ctx, loc)
	return reading
}

// Lookup is GetCurrentWeather that also reports where the reading came from.
func (c *WeatherClient) Lookup(ctx context.Context, loc geo.Coordinate) (WeatherReading, WeatherOrigin) {
	key := weatherCacheKey(loc)

	if reading, ok := c.cache.Get(key); ok {
		weatherRequestsTotal.WithLabelValues("cache_hit").Inc()
		return reading, OriginCache
	}

	if !c.window.Allow() {
		weatherRequestsTotal.WithLabelValues("rate_limited").Inc()
		c.log.Warn("weather request budget exhausted",
			zap.Int("limit", c.cfg.RateLimit),
			zap.Duration("window", c.cfg.RateWindow),
		)
		return c.fallback(key)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reading, err := c.provider.CurrentWeather(fetchCtx, loc)
	if err != nil {
		weatherRequestsTotal.WithLabelValues("failed").Inc()
		logger.WithContext(ctx).Warn("weather fetch failed",
			zap.String("provider", c.provider.Name()),
			zap.String("key", key),
			zap.Error(err),
		)
		if errors.Is(err, resilience.ErrCircuitOpen) {
			apperrors.CaptureWarning(ctx, "weather provider circuit open", "weather",
				map[string]string{"provider": c.provider.Name()})
		}
		return c.fallback(key)
	}

	weatherRequestsTotal.WithLabelValues("fetched").Inc()
	c.cache.Put(key, reading)
	return reading, OriginProvider
}

// PurgeStale drops cached readings older than StaleTTL and returns how
// many were removed.
func (c *WeatherClient) PurgeStale() int {
	return c.cache.Purge(c.cfg.StaleTTL)
}

// Stats reports cache size and remaining budget.
func (c *WeatherClient) Stats() WeatherClientStats {
	return WeatherClientStats{
		Provider:        c.provider.Name(),
		CachedLocations: c.cache.Len(),
		RemainingBudget: c.window.Remaining(),
		RateLimit:       c.cfg.RateLimit,
	}
}

func (c *WeatherClient) fallback(key string) (WeatherReading, WeatherOrigin) {
	if entry, ok := c.cache.Peek(key); ok {
		weatherFallbacksTotal.WithLabelValues("stale").Inc()
		return entry.Value, OriginStale
	}
	weatherFallbacksTotal.WithLabelValues("static").Inc()
	return FallbackWeather, OriginFallback
}

// weatherCacheKey quantises to two decimals (about 1 km).
func weatherCacheKey(loc geo.Coordinate) string {
	return fmt.Sprintf("%d_%d",
		int64(math.Round(loc.Latitude*100)),
		int64(math.Round(loc.Longitude*100)),
	)
}
