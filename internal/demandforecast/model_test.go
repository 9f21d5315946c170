package demandforecast

import (
	"math"
	"testing"

	"github.com/richxcame/taxi-demand/pkg/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	shibuya = geo.Coordinate{Latitude: 35.6762, Longitude: 139.6503}
	ginza   = geo.Coordinate{Latitude: 35.6586, Longitude: 139.7454}

	heavyRain = WeatherReading{Condition: WeatherHeavyRain, TemperatureC: 18, HumidityPct: 95}
	clearSky  = WeatherReading{Condition: WeatherClear, TemperatureC: 24, HumidityPct: 40}

	mondayRush   = TimeContext{HourOfDay: 8, DayOfWeek: 1}
	weekdayNoon  = TimeContext{HourOfDay: 14, DayOfWeek: 3}
	saturdayLate = TimeContext{HourOfDay: 23, DayOfWeek: 6}
)

// ============================================================================
// FEATURE EXTRACTION
// ============================================================================

func TestWeatherCondition_Code(t *testing.T) {
	tests := []struct {
		condition WeatherCondition
		want      int
	}{
		{WeatherClear, 1},
		{WeatherCloudy, 2},
		{WeatherLightRain, 3},
		{WeatherRain, 4},
		{WeatherHeavyRain, 5},
		{WeatherSnow, 6},
		{WeatherTyphoon, 7},
		{WeatherCondition("sandstorm"), 2},
		{WeatherCondition(""), 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.condition), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.condition.Code())
		})
	}
}

func TestIsRushHourAndWeekend(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		want := hour == 7 || hour == 8 || hour == 9 || hour == 17 || hour == 18 || hour == 19
		assert.Equal(t, want, IsRushHour(hour), "hour %d", hour)
	}
	for day := 0; day < 7; day++ {
		assert.Equal(t, day == 0 || day == 6, IsWeekend(day), "day %d", day)
	}
}

func TestFeatureExtractor_Extract(t *testing.T) {
	e := NewFeatureExtractor(nil)

	f := e.Extract(shibuya, heavyRain, mondayRush)

	require.Len(t, f.HotspotDistancesKm, 3)
	assert.Equal(t, 0.0, f.HotspotDistancesKm[0])
	assert.InDelta(t, 5.2, f.HotspotDistancesKm[1], 0.1)
	assert.InDelta(t, 8.8, f.HotspotDistancesKm[2], 0.1)
	assert.Equal(t, 5, f.WeatherCode)
	assert.Equal(t, 18.0, f.TemperatureC)
	assert.True(t, f.IsRushHour)
	assert.False(t, f.IsWeekend)
	assert.Equal(t, shibuya.Latitude, f.Latitude)
}

func TestLinearDemandModel_PredictAtAntipode(t *testing.T) {
	e := NewFeatureExtractor(nil)
	m := NewLinearDemandModel(e.Hotspots(), DefaultModelWeights())
	antipode := geo.Coordinate{Latitude: -shibuya.Latitude, Longitude: shibuya.Longitude - 180}

	f := e.Extract(antipode, heavyRain, mondayRush)
	for i, d := range f.HotspotDistancesKm {
		assert.False(t, math.IsNaN(d), "hotspot %d", i)
	}

	result := m.Predict(f)
	assert.Equal(t, 0.0, result.DemandScore)
	assert.NotEqual(t, "Shibuya", result.OptimalArea)
	assert.NotEmpty(t, result.OptimalArea)
}

func TestFeatureExtractor_MissingNumericWeather(t *testing.T) {
	e := NewFeatureExtractor(nil)

	f := e.Extract(shibuya, WeatherReading{Condition: WeatherRain, TemperatureC: math.NaN(), HumidityPct: math.NaN()}, weekdayNoon)

	assert.Equal(t, DefaultTemperatureC, f.TemperatureC)
	assert.Equal(t, DefaultHumidityPct, f.HumidityPct)
	assert.Equal(t, 4, f.WeatherCode)
}

func TestFeatureExtractor_CustomHotspotsAreCopied(t *testing.T) {
	hotspots := []Hotspot{{Name: "Tokyo Station", Location: geo.Coordinate{Latitude: 35.6812, Longitude: 139.7671}}}
	e := NewFeatureExtractor(hotspots)
	hotspots[0].Name = "changed"

	assert.Equal(t, "Tokyo Station", e.Hotspots()[0].Name)
	assert.Len(t, e.Extract(shibuya, clearSky, weekdayNoon).HotspotDistancesKm, 1)
}

// ============================================================================
// LINEAR MODEL
// ============================================================================

func predictAt(m *LinearDemandModel, loc geo.Coordinate, w WeatherReading, tm TimeContext) PredictionResult {
	return m.Predict(NewFeatureExtractor(nil).Extract(loc, w, tm))
}

func TestLinearDemandModel_DefaultScores(t *testing.T) {
	m := NewLinearDemandModel(nil, DefaultModelWeights())

	rush := predictAt(m, shibuya, heavyRain, mondayRush)
	noon := predictAt(m, shibuya, clearSky, weekdayNoon)

	assert.InDelta(t, 0.718, rush.DemandScore, 0.01)
	assert.InDelta(t, 0.318, noon.DemandScore, 0.01)
	assert.Greater(t, rush.DemandScore, noon.DemandScore)

	assert.Equal(t, "Shibuya", rush.OptimalArea)
	assert.Equal(t, 5, rush.ExpectedWaitMinutes)
	assert.Equal(t, int(math.Round(2000+rush.DemandScore*3000)), rush.PotentialEarnings)
	assert.Equal(t, Currency, rush.Currency)
	assert.Equal(t, 0.88, rush.Confidence)
	assert.Equal(t, ModelVersion, rush.ModelVersion)
	assert.Equal(t, "Rush hour traffic, Rainy weather increasing demand", rush.Reasoning)
	assert.Equal(t, "Standard demand patterns", noon.Reasoning)
}

func TestLinearDemandModel_ScoreIsClamped(t *testing.T) {
	high := DefaultModelWeights()
	high.Bias = 5
	low := DefaultModelWeights()
	low.Bias = -5

	top := predictAt(NewLinearDemandModel(nil, high), shibuya, heavyRain, mondayRush)
	assert.Equal(t, 1.0, top.DemandScore)
	assert.Equal(t, 2, top.ExpectedWaitMinutes)
	assert.Equal(t, 5000, top.PotentialEarnings)

	bottom := predictAt(NewLinearDemandModel(nil, low), shibuya, clearSky, weekdayNoon)
	assert.Equal(t, 0.0, bottom.DemandScore)
	assert.Equal(t, 12, bottom.ExpectedWaitMinutes)
	assert.Equal(t, 2000, bottom.PotentialEarnings)

	far := predictAt(NewLinearDemandModel(nil, DefaultModelWeights()), geo.Coordinate{Latitude: -33.8688, Longitude: 151.2093}, heavyRain, mondayRush)
	assert.Equal(t, 0.0, far.DemandScore)
}

func TestLinearDemandModel_OptimalAreaTieKeepsFirst(t *testing.T) {
	same := geo.Coordinate{Latitude: 35.0, Longitude: 139.0}
	hotspots := []Hotspot{
		{Name: "First", Location: same},
		{Name: "Second", Location: same},
	}
	e := NewFeatureExtractor(hotspots)
	m := NewLinearDemandModel(hotspots, DefaultModelWeights())

	result := m.Predict(e.Extract(geo.Coordinate{Latitude: 35.1, Longitude: 139.1}, clearSky, weekdayNoon))
	assert.Equal(t, "First", result.OptimalArea)

	result = predictAt(NewLinearDemandModel(nil, DefaultModelWeights()), ginza, clearSky, weekdayNoon)
	assert.Equal(t, "Ginza", result.OptimalArea)
}

func TestLinearDemandModel_UnknownHotspotUsesDefaultWeight(t *testing.T) {
	hotspots := []Hotspot{{Name: "Roppongi", Location: geo.Coordinate{Latitude: 35.6628, Longitude: 139.7314}}}
	e := NewFeatureExtractor(hotspots)
	m := NewLinearDemandModel(hotspots, DefaultModelWeights())

	f := e.Extract(shibuya, clearSky, weekdayNoon)
	result := m.Predict(f)

	want := 0.5 - 0.015*f.HotspotDistancesKm[0] + 0.05
	assert.InDelta(t, want, result.DemandScore, 1e-9)
}

func TestLinearDemandModel_WeekendNightlife(t *testing.T) {
	m := NewLinearDemandModel(nil, DefaultModelWeights())

	result := predictAt(m, shibuya, WeatherReading{Condition: WeatherRain}, saturdayLate)
	assert.Equal(t, "Rainy weather increasing demand, Weekend nightlife", result.Reasoning)
}

func TestLinearDemandModel_Train(t *testing.T) {
	samples := func(n int) []TrainingSample {
		out := make([]TrainingSample, n)
		for i := range out {
			out[i] = TrainingSample{Location: shibuya, Weather: clearSky, Time: weekdayNoon}
		}
		return out
	}

	t.Run("too few samples keeps defaults", func(t *testing.T) {
		m := NewLinearDemandModel(nil, DefaultModelWeights())
		assert.False(t, m.Train(samples(49)))
		assert.Equal(t, DefaultModelWeights(), m.Weights())
	})

	t.Run("enough samples adjusts weather and rush hour", func(t *testing.T) {
		m := NewLinearDemandModel(nil, DefaultModelWeights())
		require.True(t, m.Train(samples(50)))

		w := m.Weights()
		assert.InDelta(t, 0.0525, w.Weather, 1e-12)
		assert.InDelta(t, 0.206, w.RushHour, 1e-12)
		assert.Equal(t, 0.1, w.Weekend)
		assert.Equal(t, 0.5, w.Bias)
	})

	t.Run("training is idempotent", func(t *testing.T) {
		m := NewLinearDemandModel(nil, DefaultModelWeights())
		m.Train(samples(150))
		first := m.Weights()
		m.Train(samples(150))
		m.Train(samples(150))
		assert.Equal(t, first, m.Weights())
	})

	t.Run("weights snapshot is a copy", func(t *testing.T) {
		m := NewLinearDemandModel(nil, DefaultModelWeights())
		w := m.Weights()
		w.HotspotDistance["Shibuya"] = 42
		assert.Equal(t, -0.02, m.Weights().HotspotDistance["Shibuya"])
	})
}
