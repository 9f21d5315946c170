package demandforecast

import (
	"context"

	"github.com/richxcame/taxi-demand/pkg/geo"
)

// WeatherProvider fetches the current weather from an upstream source.
// Implementations return an error for anything they cannot turn into a
// complete reading.
type WeatherProvider interface {
	Name() string
	CurrentWeather(ctx context.Context, loc geo.Coordinate) (WeatherReading, error)
}

// WeatherSource always yields a reading, falling back when it has to.
type WeatherSource interface {
	GetCurrentWeather(ctx context.Context, loc geo.Coordinate) WeatherReading
}

// Ensure implementations satisfy the interfaces
var (
	_ WeatherProvider = (*OpenWeatherProvider)(nil)
	_ WeatherProvider = StaticProvider{}
	_ WeatherSource   = (*WeatherClient)(nil)
)
