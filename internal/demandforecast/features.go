package demandforecast

import (
	"github.com/richxcame/taxi-demand/pkg/geo"
)

// FeatureVector is the fixed-order model input. HotspotDistancesKm follows
// the hotspot order of the extractor that built it.
type FeatureVector struct {
	Latitude           float64
	Longitude          float64
	HotspotDistancesKm []float64
	WeatherCode        int
	TemperatureC       float64
	HumidityPct        float64
	HourOfDay          int
	DayOfWeek          int
	IsRushHour         bool
	IsWeekend          bool
}

// FeatureExtractor turns raw inputs into feature vectors against an ordered
// hotspot set.
type FeatureExtractor struct {
	hotspots []Hotspot
}

// NewFeatureExtractor creates an extractor. An empty set selects DefaultHotspots.
func NewFeatureExtractor(hotspots []Hotspot) *FeatureExtractor {
	if len(hotspots) == 0 {
		hotspots = DefaultHotspots()
	}
	owned := make([]Hotspot, len(hotspots))
	copy(owned, hotspots)
	return &FeatureExtractor{hotspots: owned}
}

// Hotspots returns a copy of the hotspot set in feature order.
func (e *FeatureExtractor) Hotspots() []Hotspot {
	out := make([]Hotspot, len(e.hotspots))
	copy(out, e.hotspots)
	return out
}

// Extract builds the feature vector for a location, weather reading and time.
func (e *FeatureExtractor) Extract(loc geo.Coordinate, weather WeatherReading, tm TimeContext) FeatureVector {
	weather = weather.Normalized()

	distances := make([]float64, len(e.hotspots))
	for i, h := range e.hotspots {
		distances[i] = geo.DistanceKm(loc, h.Location)
	}

	return FeatureVector{
		Latitude:           loc.Latitude,
		Longitude:          loc.Longitude,
		HotspotDistancesKm: distances,
		WeatherCode:        weather.Condition.Code(),
		TemperatureC:       weather.TemperatureC,
		HumidityPct:        weather.HumidityPct,
		HourOfDay:          tm.HourOfDay,
		DayOfWeek:          tm.DayOfWeek,
		IsRushHour:         IsRushHour(tm.HourOfDay),
		IsWeekend:          IsWeekend(tm.DayOfWeek),
	}
}

// IsRushHour reports whether hour falls in the morning or evening peak.
func IsRushHour(hour int) bool {
	return (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19)
}

// IsWeekend reports whether day is Saturday or Sunday.
func IsWeekend(day int) bool {
	return day == 0 || day == 6
}
