package demandforecast

import (
	"math"
	"strings"
	"sync"
)

// ModelVersion identifies the feature layout the weights are fitted to.
const ModelVersion = "linear-v1"

// Currency of PotentialEarnings.
const Currency = "JPY"

const (
	modelConfidence = 0.88

	// trainLookback is how many of the newest samples Train looks at, and
	// trainMinSamples how many of those it needs before adjusting anything.
	trainLookback   = 100
	trainMinSamples = 50

	trainWeatherFactor  = 1.05
	trainRushHourFactor = 1.03
)

// ModelWeights holds the linear model coefficients
type ModelWeights struct {
	Bias                   float64            `json:"bias"`
	HotspotDistance        map[string]float64 `json:"hotspot_distance"`
	DefaultHotspotDistance float64            `json:"default_hotspot_distance"`
	Weather                float64            `json:"weather"`
	RushHour               float64            `json:"rush_hour"`
	Weekend                float64            `json:"weekend"`
	Hour                   float64            `json:"hour"`
}

// DefaultModelWeights returns the default model weights (per kilometre for
// hotspot distances)
func DefaultModelWeights() ModelWeights {
	return ModelWeights{
		Bias: 0.5,
		HotspotDistance: map[string]float64{
			"Shibuya":  -0.02,
			"Shinjuku": -0.015,
			"Ginza":    -0.0175,
		},
		DefaultHotspotDistance: -0.015,
		Weather:                0.05,
		RushHour:               0.2,
		Weekend:                0.1,
		Hour:                   0,
	}
}

func (w ModelWeights) clone() ModelWeights {
	out := w
	out.HotspotDistance = make(map[string]float64, len(w.HotspotDistance))
	for k, v := range w.HotspotDistance {
		out.HotspotDistance[k] = v
	}
	return out
}

func (w ModelWeights) distanceWeight(hotspot string) float64 {
	if v, ok := w.HotspotDistance[hotspot]; ok {
		return v
	}
	return w.DefaultHotspotDistance
}

// LinearDemandModel scores feature vectors with a weighted sum.
type LinearDemandModel struct {
	mu       sync.RWMutex
	hotspots []Hotspot
	base     ModelWeights
	weights  ModelWeights
}

// NewLinearDemandModel creates a model over the given hotspot order, which
// must match the extractor producing its features.
func NewLinearDemandModel(hotspots []Hotspot, weights ModelWeights) *LinearDemandModel {
	if len(hotspots) == 0 {
		hotspots = DefaultHotspots()
	}
	owned := make([]Hotspot, len(hotspots))
	copy(owned, hotspots)
	return &LinearDemandModel{
		hotspots: owned,
		base:     weights.clone(),
		weights:  weights.clone(),
	}
}

// Weights returns a snapshot of the current weights.
func (m *LinearDemandModel) Weights() ModelWeights {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.weights.clone()
}

// Predict scores f. GeneratedAt is left for the caller to stamp.
func (m *LinearDemandModel) Predict(f FeatureVector) PredictionResult {
	m.mu.RLock()
	w := m.weights
	m.mu.RUnlock()

	score := w.Bias
	optimal := ""
	best := math.Inf(1)
	for i, h := range m.hotspots {
		if i >= len(f.HotspotDistancesKm) {
			break
		}
		d := f.HotspotDistancesKm[i]
		score += w.distanceWeight(h.Name) * d
		if d < best {
			best = d
			optimal = h.Name
		}
	}
	score += w.Weather * float64(f.WeatherCode)
	if f.IsRushHour {
		score += w.RushHour
	}
	if f.IsWeekend {
		score += w.Weekend
	}
	score += w.Hour * float64(f.HourOfDay)
	score = clamp01(score)

	return PredictionResult{
		DemandScore:         score,
		Confidence:          modelConfidence,
		OptimalArea:         optimal,
		ExpectedWaitMinutes: int(math.Round((1-score)*10 + 2)),
		PotentialEarnings:   int(math.Round(2000 + score*3000)),
		Currency:            Currency,
		Reasoning:           reasoning(f),
		ModelVersion:        ModelVersion,
	}
}

// Train adjusts the weights from recent samples and reports whether it did.
// It always starts from the base weights, so the same samples give the same
// result no matter how often Train runs.
func (m *LinearDemandModel) Train(samples []TrainingSample) bool {
	if len(samples) > trainLookback {
		samples = samples[len(samples)-trainLookback:]
	}

	trained := m.base.clone()
	adjusted := false
	if len(samples) >= trainMinSamples {
		trained.Weather *= trainWeatherFactor
		trained.RushHour *= trainRushHourFactor
		adjusted = true
	}

	m.mu.Lock()
	m.weights = trained
	m.mu.Unlock()
	return adjusted
}

func reasoning(f FeatureVector) string {
	var reasons []string
	if f.IsRushHour {
		reasons = append(reasons, "Rush hour traffic")
	}
	if f.WeatherCode >= WeatherRain.Code() {
		reasons = append(reasons, "Rainy weather increasing demand")
	}
	if f.IsWeekend && f.HourOfDay >= 22 {
		reasons = append(reasons, "Weekend nightlife")
	}
	if len(reasons) == 0 {
		return "Standard demand patterns"
	}
	return strings.Join(reasons, ", ")
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
