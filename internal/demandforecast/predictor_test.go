package demandforecast

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/richxcame/taxi-demand/pkg/geo"
	"github.com/richxcame/taxi-demand/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockWeatherSource struct {
	mock.Mock
}

func (m *mockWeatherSource) GetCurrentWeather(ctx context.Context, loc geo.Coordinate) WeatherReading {
	args := m.Called(ctx, loc)
	return args.Get(0).(WeatherReading)
}

func newReadyPredictor(t *testing.T, weather WeatherSource, store storage.BlobStore, cfg *Config, clock *fakeClock) *Predictor {
	t.Helper()
	p := NewPredictor(weather, store, cfg).WithNow(clock.Now)
	require.NoError(t, p.Initialize(context.Background()))
	return p
}

func noRecording() *Config {
	cfg := DefaultConfig()
	cfg.RecordSamples = false
	return cfg
}

// ============================================================================
// INITIALIZATION
// ============================================================================

func TestPredictor_NotReadyServesFallback(t *testing.T) {
	weather := new(mockWeatherSource)
	clock := newFakeClock()
	p := NewPredictor(weather, storage.NewMemoryStore(), nil).WithNow(clock.Now)

	result := p.Predict(context.Background(), shibuya, nil, nil)

	assert.False(t, p.Ready())
	assert.Equal(t, 0.6, result.DemandScore)
	assert.Equal(t, 0.7, result.Confidence)
	assert.Equal(t, "Shibuya", result.OptimalArea)
	assert.Equal(t, 5, result.ExpectedWaitMinutes)
	assert.Equal(t, 3000, result.PotentialEarnings)
	assert.Equal(t, "Fallback prediction based on historical patterns", result.Reasoning)
	weather.AssertNotCalled(t, "GetCurrentWeather", mock.Anything, mock.Anything)
}

func TestPredictor_InitializeWithoutDataKeepsDefaults(t *testing.T) {
	p := newReadyPredictor(t, new(mockWeatherSource), storage.NewMemoryStore(), nil, newFakeClock())

	assert.True(t, p.Ready())
	assert.Equal(t, DefaultModelWeights(), p.Stats().Weights)
}

func TestPredictor_InitializeWithCorruptDataKeepsDefaults(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), TrainingDataKey, []byte("not json at all")))

	p := newReadyPredictor(t, new(mockWeatherSource), store, nil, newFakeClock())

	assert.True(t, p.Ready())
	assert.Equal(t, DefaultModelWeights(), p.Stats().Weights)
	assert.Equal(t, 0, p.Stats().Training.Samples)
}

func TestPredictor_InitializeWithStoreErrorKeepsDefaults(t *testing.T) {
	store := new(mockBlobStore)
	store.On("Load", mock.Anything, TrainingDataKey).Return(nil, errors.New("connection reset"))

	p := newReadyPredictor(t, new(mockWeatherSource), store, nil, newFakeClock())

	assert.True(t, p.Ready())
	assert.Equal(t, DefaultModelWeights(), p.Stats().Weights)
}

func TestPredictor_InitializeTrainsFromHistory(t *testing.T) {
	store := storage.NewMemoryStore()
	history := make([]TrainingSample, 60)
	for i := range history {
		history[i] = sampleWithScore(0.5, time.Date(2024, 3, 1, 0, i, 0, 0, time.UTC))
	}
	data, err := json.Marshal(history)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), TrainingDataKey, data))

	p := newReadyPredictor(t, new(mockWeatherSource), store, nil, newFakeClock())

	w := p.Stats().Weights
	assert.InDelta(t, 0.0525, w.Weather, 1e-12)
	assert.InDelta(t, 0.206, w.RushHour, 1e-12)
	assert.Equal(t, 60, p.Stats().Training.Samples)
}

func TestPredictor_InitializeCancelled(t *testing.T) {
	p := NewPredictor(new(mockWeatherSource), storage.NewMemoryStore(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Initialize(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, p.Ready())
}

// ============================================================================
// PREDICTION
// ============================================================================

func TestPredictor_RainyRushBeatsClearMidday(t *testing.T) {
	p := newReadyPredictor(t, new(mockWeatherSource), storage.NewMemoryStore(), noRecording(), newFakeClock())

	rush := p.Predict(context.Background(), shibuya, &heavyRain, &mondayRush)
	noon := p.Predict(context.Background(), shibuya, &clearSky, &weekdayNoon)

	assert.Greater(t, rush.DemandScore, noon.DemandScore)
	assert.InDelta(t, 0.718, rush.DemandScore, 0.01)
	assert.InDelta(t, 0.318, noon.DemandScore, 0.01)
	assert.GreaterOrEqual(t, rush.DemandScore, 0.0)
	assert.LessOrEqual(t, rush.DemandScore, 1.0)
	assert.Equal(t, "Shibuya", rush.OptimalArea)
}

func TestPredictor_CachedResultIsIdenticalAndSkipsNetwork(t *testing.T) {
	provider := new(mockWeatherProvider)
	provider.On("CurrentWeather", mock.Anything, mock.Anything).Return(heavyRain, nil)
	clock := newFakeClock()
	weather := newTestWeatherClient(provider, clock)
	p := newReadyPredictor(t, weather, storage.NewMemoryStore(), noRecording(), clock)

	first := p.Predict(context.Background(), shibuya, nil, nil)
	clock.Advance(time.Minute)
	second := p.Predict(context.Background(), shibuya, nil, nil)

	assert.Equal(t, first, second)
	assert.True(t, first.GeneratedAt.Equal(second.GeneratedAt))
	provider.AssertNumberOfCalls(t, "CurrentWeather", 1)
	assert.Contains(t, first.Reasoning, "Rush hour traffic")
}

func TestPredictor_CacheEntryExpiresAfterTTL(t *testing.T) {
	clock := newFakeClock()
	p := newReadyPredictor(t, new(mockWeatherSource), storage.NewMemoryStore(), noRecording(), clock)

	first := p.Predict(context.Background(), shibuya, &clearSky, &weekdayNoon)

	clock.Advance(5 * time.Minute)
	atTTL := p.Predict(context.Background(), shibuya, &clearSky, &weekdayNoon)
	assert.True(t, first.GeneratedAt.Equal(atTTL.GeneratedAt))

	clock.Advance(time.Second)
	fresh := p.Predict(context.Background(), shibuya, &clearSky, &weekdayNoon)
	assert.False(t, first.GeneratedAt.Equal(fresh.GeneratedAt))
	assert.True(t, fresh.GeneratedAt.Equal(clock.Now()))
	assert.Equal(t, first.DemandScore, fresh.DemandScore)
}

func TestPredictor_NearbyLocationsShareCacheEntry(t *testing.T) {
	clock := newFakeClock()
	p := newReadyPredictor(t, new(mockWeatherSource), storage.NewMemoryStore(), noRecording(), clock)
	nearby := geo.Coordinate{Latitude: shibuya.Latitude, Longitude: shibuya.Longitude + 0.0001}

	a := p.Predict(context.Background(), shibuya, &clearSky, &weekdayNoon)
	clock.Advance(time.Second)
	b := p.Predict(context.Background(), nearby, &clearSky, &weekdayNoon)

	assert.Equal(t, a, b)
	assert.Equal(t, PredictionCacheKey(shibuya, weekdayNoon, 1), PredictionCacheKey(nearby, weekdayNoon, 1))
}

func TestPredictor_CacheKeyIncludesHourAndWeather(t *testing.T) {
	p := newReadyPredictor(t, new(mockWeatherSource), storage.NewMemoryStore(), noRecording(), newFakeClock())

	a := p.Predict(context.Background(), shibuya, &clearSky, &weekdayNoon)
	b := p.Predict(context.Background(), shibuya, &heavyRain, &weekdayNoon)
	c := p.Predict(context.Background(), shibuya, &clearSky, &mondayRush)

	assert.NotEqual(t, a.DemandScore, b.DemandScore)
	assert.NotEqual(t, a.DemandScore, c.DemandScore)
	assert.Equal(t, 3, p.Stats().CachedCount)
}

func TestPredictor_MissingWeatherNumbersUseDefaults(t *testing.T) {
	p := newReadyPredictor(t, new(mockWeatherSource), storage.NewMemoryStore(), nil, newFakeClock())
	partial := WeatherReading{Condition: WeatherRain, TemperatureC: math.NaN(), HumidityPct: math.NaN()}

	result := p.Predict(context.Background(), shibuya, &partial, &weekdayNoon)

	assert.Contains(t, result.Reasoning, "Rainy weather increasing demand")
	samples := p.log.Samples()
	require.Len(t, samples, 1)
	assert.Equal(t, DefaultTemperatureC, samples[0].Weather.TemperatureC)
	assert.Equal(t, DefaultHumidityPct, samples[0].Weather.HumidityPct)
}

func TestPredictor_UsesClockWhenTimeMissing(t *testing.T) {
	clock := newFakeClock()
	weather := new(mockWeatherSource)
	weather.On("GetCurrentWeather", mock.Anything, shibuya).Return(clearSky)
	p := newReadyPredictor(t, weather, storage.NewMemoryStore(), nil, clock)

	result := p.Predict(context.Background(), shibuya, nil, nil)

	// The fake clock reads Monday 08:00.
	assert.Contains(t, result.Reasoning, "Rush hour traffic")
	samples := p.log.Samples()
	require.Len(t, samples, 1)
	assert.Equal(t, TimeContext{HourOfDay: 8, DayOfWeek: 1}, samples[0].Time)
	weather.AssertExpectations(t)
}

// ============================================================================
// TRAINING DATA
// ============================================================================

func TestPredictor_RecordsSamplesAndPersists(t *testing.T) {
	store := storage.NewMemoryStore()
	p := newReadyPredictor(t, new(mockWeatherSource), store, nil, newFakeClock())

	p.Predict(context.Background(), shibuya, &heavyRain, &mondayRush)
	p.Predict(context.Background(), shibuya, &heavyRain, &mondayRush)

	stats := p.Stats().Training
	assert.Equal(t, 2, stats.Samples)
	assert.Equal(t, 1, stats.DistinctCells)

	data, err := store.Load(context.Background(), TrainingDataKey)
	require.NoError(t, err)
	var persisted []TrainingSample
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Len(t, persisted, 2)
	assert.NotEqual(t, persisted[0].ID, persisted[1].ID)
	assert.Equal(t, geo.CellFor(shibuya, geo.H3ResolutionDemand), persisted[0].Cell)
}

func TestPredictor_RecordingDisabled(t *testing.T) {
	store := storage.NewMemoryStore()
	p := newReadyPredictor(t, new(mockWeatherSource), store, noRecording(), newFakeClock())

	p.Predict(context.Background(), shibuya, &heavyRain, &mondayRush)

	assert.Equal(t, 0, p.Stats().Training.Samples)
	_, err := store.Load(context.Background(), TrainingDataKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPredictor_PersistFailureIsSwallowed(t *testing.T) {
	store := new(mockBlobStore)
	store.On("Load", mock.Anything, TrainingDataKey).Return(nil, storage.ErrNotFound)
	store.On("Save", mock.Anything, TrainingDataKey, mock.Anything).Return(errors.New("read-only file system"))
	p := newReadyPredictor(t, new(mockWeatherSource), store, nil, newFakeClock())

	ctx, rec := contextWithSentryRecorder(t)
	result := p.Predict(ctx, shibuya, &clearSky, &weekdayNoon)

	assert.InDelta(t, 0.318, result.DemandScore, 0.01)
	assert.Equal(t, 1, p.Stats().Training.Samples)
	store.AssertNumberOfCalls(t, "Save", 1)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, sentry.LevelError, events[0].Level)
	assert.Equal(t, "training_log", events[0].Tags["component"])
	require.NotEmpty(t, events[0].Exception)
	assert.Contains(t, events[0].Exception[0].Value, "read-only file system")
}

func TestPredictor_Retrain(t *testing.T) {
	p := newReadyPredictor(t, new(mockWeatherSource), storage.NewMemoryStore(), nil, newFakeClock())
	assert.False(t, p.Retrain())

	for i := 0; i < 50; i++ {
		p.SaveTrainingData(context.Background(), sampleWithScore(0.5, time.Now()))
	}

	assert.True(t, p.Retrain())
	assert.InDelta(t, 0.0525, p.Stats().Weights.Weather, 1e-12)
}

func TestPredictor_TrainingWorkerPurgesCaches(t *testing.T) {
	clock := newFakeClock()
	weather := NewWeatherClient(StaticProvider{Reading: clearSky}, DefaultWeatherClientConfig()).WithNow(clock.Now)
	p := newReadyPredictor(t, weather, storage.NewMemoryStore(), noRecording(), clock)

	p.Predict(context.Background(), shibuya, nil, &weekdayNoon)
	require.Equal(t, 1, weather.Stats().CachedLocations)
	require.Equal(t, 1, p.Stats().CachedCount)

	clock.Advance(2 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.StartModelTrainingWorker(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return weather.Stats().CachedLocations == 0 && p.Stats().CachedCount == 0
	}, time.Second, 5*time.Millisecond)
}

func TestPredictor_TrainingWorkerStopsOnCancel(t *testing.T) {
	p := newReadyPredictor(t, new(mockWeatherSource), storage.NewMemoryStore(), nil, newFakeClock())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.StartModelTrainingWorker(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("training worker did not stop")
	}
}
