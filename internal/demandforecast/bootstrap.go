package demandforecast

import (
	"context"
	"errors"
	"time"

	"github.com/richxcame/taxi-demand/pkg/config"
	"github.com/richxcame/taxi-demand/pkg/httpclient"
	"github.com/richxcame/taxi-demand/pkg/logger"
	"github.com/richxcame/taxi-demand/pkg/resilience"
	"github.com/richxcame/taxi-demand/pkg/storage"
)

// Components is a fully wired prediction stack.
type Components struct {
	Predictor *Predictor
	Weather   *WeatherClient
	Store     storage.BlobStore
	Breaker   *resilience.CircuitBreaker
}

// NewWeatherProviderFromConfig returns the OpenWeatherMap provider, or a
// StaticProvider serving FallbackWeather when no API key is configured.
// The returned breaker is nil when breaking is disabled or not applicable.
func NewWeatherProviderFromConfig(cfg *config.Config) (WeatherProvider, *resilience.CircuitBreaker) {
	if cfg.Weather.APIKey == "" {
		logger.Named("weather").Warn("WEATHER_API_KEY not set, serving fallback weather")
		return StaticProvider{Reading: FallbackWeather}, nil
	}

	var breaker *resilience.CircuitBreaker
	if cfg.Resilience.CircuitBreaker.Enabled {
		settings := resilience.SettingsFromConfig("weather-provider", cfg.Resilience.CircuitBreaker)
		settings.IsSuccessful = func(err error) bool {
			// Callers giving up is not the provider's fault.
			return errors.Is(err, context.Canceled)
		}
		breaker = resilience.NewCircuitBreaker(settings, nil)
	}

	client := httpclient.NewClient(cfg.Weather.BaseURL, cfg.Weather.WeatherTimeout(),
		httpclient.WithRetry(weatherRetryConfig()))
	return NewOpenWeatherProvider(client, cfg.Weather.APIKey, breaker), breaker
}

// weatherRetryConfig allows one quick retry inside the fetch timeout.
func weatherRetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
		EnableJitter:      true,
	}
}

// Bootstrap opens storage, wires the weather client and predictor, and
// initialises the predictor. The cleanup releases the store.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Components, func(), error) {
	store, cleanup, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, func() {}, err
	}

	provider, breaker := NewWeatherProviderFromConfig(cfg)
	weather := NewWeatherClient(provider, WeatherClientConfigFrom(cfg.Weather))
	predictor := NewPredictor(weather, store, ConfigFrom(cfg.Predictor))

	if err := predictor.Initialize(ctx); err != nil {
		cleanup()
		return nil, func() {}, err
	}

	return &Components{
		Predictor: predictor,
		Weather:   weather,
		Store:     store,
		Breaker:   breaker,
	}, cleanup, nil
}
