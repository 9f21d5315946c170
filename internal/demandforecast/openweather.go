package demandforecast

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/richxcame/taxi-demand/pkg/geo"
	"github.com/richxcame/taxi-demand/pkg/httpclient"
	"github.com/richxcame/taxi-demand/pkg/resilience"
	"github.com/richxcame/taxi-demand/pkg/tracing"
)

// ErrMalformedResponse is returned when the provider answers with a body
// that does not carry a complete reading.
var ErrMalformedResponse = errors.New("malformed weather response")

const openWeatherTracer = "demandforecast.openweather"

var openWeatherConditions = map[string]WeatherCondition{
	"clear":        WeatherClear,
	"clouds":       WeatherCloudy,
	"drizzle":      WeatherLightRain,
	"rain":         WeatherRain,
	"thunderstorm": WeatherHeavyRain,
	"snow":         WeatherSnow,
	"mist":         WeatherCloudy,
	"fog":          WeatherCloudy,
	"haze":         WeatherCloudy,
	"squall":       WeatherTyphoon,
	"tornado":      WeatherTyphoon,
}

// MapOpenWeatherCondition maps an OpenWeatherMap "main" group. Unknown
// groups map to cloudy.
func MapOpenWeatherCondition(main string) WeatherCondition {
	if c, ok := openWeatherConditions[strings.ToLower(strings.TrimSpace(main))]; ok {
		return c
	}
	return WeatherCloudy
}

type openWeatherResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
}

// OpenWeatherProvider reads current conditions from the OpenWeatherMap API.
type OpenWeatherProvider struct {
	client  *httpclient.Client
	apiKey  string
	breaker *resilience.CircuitBreaker
}

// NewOpenWeatherProvider creates a provider. A nil breaker calls through directly.
func NewOpenWeatherProvider(client *httpclient.Client, apiKey string, breaker *resilience.CircuitBreaker) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		client:  client,
		apiKey:  apiKey,
		breaker: breaker,
	}
}

// Name implements WeatherProvider.
func (p *OpenWeatherProvider) Name() string {
	return "openweather"
}

// CurrentWeather implements WeatherProvider.
func (p *OpenWeatherProvider) CurrentWeather(ctx context.Context, loc geo.Coordinate) (WeatherReading, error) {
	var reading WeatherReading
	err := tracing.TraceExternalAPI(ctx, openWeatherTracer, p.Name(), "current_weather", func(ctx context.Context) error {
		result, err := p.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			return p.fetch(ctx, loc)
		})
		if err != nil {
			return err
		}
		r, ok := result.(WeatherReading)
		if !ok {
			return fmt.Errorf("unexpected breaker result %T", result)
		}
		reading = r
		return nil
	})
	if err != nil {
		return WeatherReading{}, err
	}
	return reading, nil
}

func (p *OpenWeatherProvider) fetch(ctx context.Context, loc geo.Coordinate) (WeatherReading, error) {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	query.Set("appid", p.apiKey)
	query.Set("units", "metric")

	var resp openWeatherResponse
	if err := p.client.GetJSON(ctx, "/weather", query, nil, &resp); err != nil {
		if errors.Is(err, httpclient.ErrDecodeResponse) {
			return WeatherReading{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return WeatherReading{}, fmt.Errorf("failed to fetch weather: %w", err)
	}

	return resp.reading()
}

func (resp openWeatherResponse) reading() (WeatherReading, error) {
	if len(resp.Weather) == 0 || resp.Weather[0].Main == "" {
		return WeatherReading{}, fmt.Errorf("%w: missing weather[0].main", ErrMalformedResponse)
	}
	if resp.Main == nil || resp.Main.Temp == nil || resp.Main.Humidity == nil {
		return WeatherReading{}, fmt.Errorf("%w: missing main.temp or main.humidity", ErrMalformedResponse)
	}

	return WeatherReading{
		Condition:    MapOpenWeatherCondition(resp.Weather[0].Main),
		TemperatureC: *resp.Main.Temp,
		HumidityPct:  *resp.Main.Humidity,
		Description:  resp.Weather[0].Description,
	}, nil
}

// StaticProvider always answers with the same reading. Used offline and in tests.
type StaticProvider struct {
	Reading WeatherReading
}

// Name implements WeatherProvider.
func (StaticProvider) Name() string {
	return "static"
}

// CurrentWeather implements WeatherProvider.
func (p StaticProvider) CurrentWeather(ctx context.Context, _ geo.Coordinate) (WeatherReading, error) {
	if err := ctx.Err(); err != nil {
		return WeatherReading{}, err
	}
	return p.Reading, nil
}
