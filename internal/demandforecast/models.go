package demandforecast

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/taxi-demand/pkg/geo"
)

// WeatherCondition is the coarse weather category the model understands.
type WeatherCondition string

const (
	WeatherClear     WeatherCondition = "clear"
	WeatherCloudy    WeatherCondition = "cloudy"
	WeatherLightRain WeatherCondition = "light_rain"
	WeatherRain      WeatherCondition = "rain"
	WeatherHeavyRain WeatherCondition = "heavy_rain"
	WeatherSnow      WeatherCondition = "snow"
	WeatherTyphoon   WeatherCondition = "typhoon"
)

// WeatherConditions lists every condition in ordinal order.
var WeatherConditions = []WeatherCondition{
	WeatherClear,
	WeatherCloudy,
	WeatherLightRain,
	WeatherRain,
	WeatherHeavyRain,
	WeatherSnow,
	WeatherTyphoon,
}

// Code returns the ordinal encoding used as a model feature. Unknown
// conditions encode as cloudy.
func (c WeatherCondition) Code() int {
	for i, known := range WeatherConditions {
		if c == known {
			return i + 1
		}
	}
	return 2
}

// Defaults applied when a reading is missing its numeric fields.
const (
	DefaultTemperatureC = 20.0
	DefaultHumidityPct  = 60.0
)

// WeatherReading is the current weather at a location.
type WeatherReading struct {
	Condition    WeatherCondition `json:"condition"`
	TemperatureC float64          `json:"temperature_c"`
	HumidityPct  float64          `json:"humidity_pct"`
	Description  string           `json:"description,omitempty"`
}

// Normalized replaces NaN numeric fields with the model defaults.
func (w WeatherReading) Normalized() WeatherReading {
	if math.IsNaN(w.TemperatureC) || math.IsInf(w.TemperatureC, 0) {
		w.TemperatureC = DefaultTemperatureC
	}
	if math.IsNaN(w.HumidityPct) || math.IsInf(w.HumidityPct, 0) {
		w.HumidityPct = DefaultHumidityPct
	}
	return w
}

// FallbackWeather is served when no reading can be fetched or reused.
var FallbackWeather = WeatherReading{
	Condition:    WeatherCloudy,
	TemperatureC: 22,
	HumidityPct:  65,
	Description:  "Partly cloudy",
}

// TimeContext is the time-of-week a prediction is made for.
type TimeContext struct {
	HourOfDay int `json:"hour_of_day"` // 0-23
	DayOfWeek int `json:"day_of_week"` // 0 = Sunday
}

// TimeContextAt derives the time context of t in its own location.
func TimeContextAt(t time.Time) TimeContext {
	return TimeContext{
		HourOfDay: t.Hour(),
		DayOfWeek: int(t.Weekday()),
	}
}

// Hotspot is a named reference point demand is measured against.
type Hotspot struct {
	Name     string         `json:"name"`
	Location geo.Coordinate `json:"location"`
}

// DefaultHotspots returns the Tokyo hotspot set in feature order.
func DefaultHotspots() []Hotspot {
	return []Hotspot{
		{Name: "Shibuya", Location: geo.Coordinate{Latitude: 35.6762, Longitude: 139.6503}},
		{Name: "Shinjuku", Location: geo.Coordinate{Latitude: 35.6938, Longitude: 139.7036}},
		{Name: "Ginza", Location: geo.Coordinate{Latitude: 35.6586, Longitude: 139.7454}},
	}
}

// PredictionResult is the outcome of one demand prediction.
type PredictionResult struct {
	DemandScore         float64   `json:"demand_score"`
	Confidence          float64   `json:"confidence"`
	OptimalArea         string    `json:"optimal_area"`
	ExpectedWaitMinutes int       `json:"expected_wait_minutes"`
	PotentialEarnings   int       `json:"potential_earnings"`
	Currency            string    `json:"currency"`
	Reasoning           string    `json:"reasoning"`
	ModelVersion        string    `json:"model_version"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// FallbackPrediction is returned while the predictor is not initialised.
func FallbackPrediction(now time.Time) PredictionResult {
	return PredictionResult{
		DemandScore:         0.6,
		Confidence:          0.7,
		OptimalArea:         "Shibuya",
		ExpectedWaitMinutes: 5,
		PotentialEarnings:   3000,
		Currency:            Currency,
		Reasoning:           "Fallback prediction based on historical patterns",
		ModelVersion:        "fallback",
		GeneratedAt:         now,
	}
}

// TrainingSample records one prediction together with its inputs.
type TrainingSample struct {
	ID        uuid.UUID        `json:"id"`
	Location  geo.Coordinate   `json:"location"`
	Weather   WeatherReading   `json:"weather"`
	Time      TimeContext      `json:"time"`
	Result    PredictionResult `json:"result"`
	Timestamp time.Time        `json:"timestamp"`
	Cell      string           `json:"cell,omitempty"`
}

// NewTrainingSample builds a sample for a prediction made at ts.
func NewTrainingSample(loc geo.Coordinate, weather WeatherReading, tm TimeContext, result PredictionResult, ts time.Time) TrainingSample {
	return TrainingSample{
		ID:        uuid.New(),
		Location:  loc,
		Weather:   weather.Normalized(),
		Time:      tm,
		Result:    result,
		Timestamp: ts,
		Cell:      geo.CellFor(loc, geo.H3ResolutionDemand),
	}
}
