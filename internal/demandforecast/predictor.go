package demandforecast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/richxcame/taxi-demand/pkg/config"
	apperrors "github.com/richxcame/taxi-demand/pkg/errors"
	"github.com/richxcame/taxi-demand/pkg/geo"
	"github.com/richxcame/taxi-demand/pkg/logger"
	"github.com/richxcame/taxi-demand/pkg/storage"
	"github.com/richxcame/taxi-demand/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const predictorTracer = "demandforecast.predictor"

// Config holds predictor configuration
type Config struct {
	CacheTTL          time.Duration
	CacheMaxEntries   int
	TrainingLogMax    int
	TrainingLogTrimTo int
	RecordSamples     bool
	Hotspots          []Hotspot
	Weights           *ModelWeights
}

// DefaultConfig returns default predictor configuration
func DefaultConfig() *Config {
	return &Config{
		CacheTTL:          DefaultPredictionTTL,
		TrainingLogMax:    DefaultTrainingLogMax,
		TrainingLogTrimTo: DefaultTrainingLogTrimTo,
		RecordSamples:     true,
	}
}

// ConfigFrom maps the loaded configuration.
func ConfigFrom(cfg config.PredictorConfig) *Config {
	return &Config{
		CacheTTL:          cfg.CacheTTL(),
		CacheMaxEntries:   cfg.CacheMaxEntries,
		TrainingLogMax:    cfg.TrainingLogMax,
		TrainingLogTrimTo: cfg.TrainingLogTrimTo,
		RecordSamples:     cfg.RecordSamples,
	}
}

// ModelStats is the training state exposed to operators.
type ModelStats struct {
	Ready        bool          `json:"ready"`
	ModelVersion string        `json:"model_version"`
	Weights      ModelWeights  `json:"weights"`
	Training     TrainingStats `json:"training"`
	CachedCount  int           `json:"cached_predictions"`
}

type weatherPurger interface {
	PurgeStale() int
}

// Predictor scores demand for a location, caching results and recording
// every prediction as a training sample.
type Predictor struct {
	mu        sync.Mutex
	config    *Config
	extractor *FeatureExtractor
	model     *LinearDemandModel
	cache     *PredictionCache
	weather   WeatherSource
	log       *TrainingLog
	ready     bool
	now       func() time.Time
}

// NewPredictor creates a predictor. It serves fallback predictions until
// Initialize has run.
func NewPredictor(weather WeatherSource, store storage.BlobStore, cfg *Config) *Predictor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	weights := DefaultModelWeights()
	if cfg.Weights != nil {
		weights = *cfg.Weights
	}
	extractor := NewFeatureExtractor(cfg.Hotspots)

	return &Predictor{
		config:    cfg,
		extractor: extractor,
		model:     NewLinearDemandModel(extractor.Hotspots(), weights),
		cache:     NewPredictionCache(cfg.CacheTTL, cfg.CacheMaxEntries),
		weather:   weather,
		log:       NewTrainingLog(store, cfg.TrainingLogMax, cfg.TrainingLogTrimTo),
		now:       time.Now,
	}
}

// WithNow overrides the clock of the predictor and its cache. Intended for tests.
func (p *Predictor) WithNow(now func() time.Time) *Predictor {
	if now == nil {
		return p
	}
	p.mu.Lock()
	p.now = now
	p.mu.Unlock()
	p.cache.WithNow(now)
	return p
}

// Initialize loads the persisted training log and trains the model from it.
// Missing or unreadable data leaves the default weights; only context
// cancellation is returned.
func (p *Predictor) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := p.log.Load(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return ctxErr
		}
		logger.WithContext(ctx).Warn("training data unavailable, using default weights", zap.Error(err))
	}

	samples := p.log.Samples()
	trained := p.model.Train(samples)

	p.mu.Lock()
	p.ready = true
	p.mu.Unlock()

	logger.Named("predictor").Info("demand predictor initialized",
		zap.Int("samples", len(samples)),
		zap.Bool("trained", trained),
		zap.String("model_version", ModelVersion),
	)
	return nil
}

// Ready reports whether Initialize has completed.
func (p *Predictor) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

// Hotspots returns the hotspot set in feature order.
func (p *Predictor) Hotspots() []Hotspot {
	return p.extractor.Hotspots()
}

// Predict returns the demand prediction for loc. A nil weather reading is
// fetched from the weather source; a nil time context uses the clock.
func (p *Predictor) Predict(ctx context.Context, loc geo.Coordinate, weather *WeatherReading, tm *TimeContext) PredictionResult {
	ctx, span := tracing.StartSpan(ctx, predictorTracer, "Predictor.Predict")
	defer span.End()
	span.SetAttributes(tracing.LocationAttributes(loc.Latitude, loc.Longitude)...)

	p.mu.Lock()
	ready, now := p.ready, p.now()
	p.mu.Unlock()

	if !ready {
		predictionsTotal.WithLabelValues("fallback").Inc()
		logger.WithContext(ctx).Warn("predictor not initialized, serving fallback prediction")
		return FallbackPrediction(now)
	}

	var reading WeatherReading
	if weather != nil {
		reading = *weather
	} else {
		reading = p.weather.GetCurrentWeather(ctx, loc)
	}
	reading = reading.Normalized()

	timeCtx := TimeContextAt(now)
	if tm != nil {
		timeCtx = *tm
	}

	key := PredictionCacheKey(loc, timeCtx, reading.Condition.Code())

	p.mu.Lock()
	result, hit := p.cache.Get(key)
	if !hit {
		features := p.extractor.Extract(loc, reading, timeCtx)
		result = p.model.Predict(features)
		result.GeneratedAt = now
		p.cache.Put(key, result)
	}
	p.mu.Unlock()

	if hit {
		predictionsTotal.WithLabelValues("cached").Inc()
	} else {
		predictionsTotal.WithLabelValues("computed").Inc()
		demandScore.Observe(result.DemandScore)
	}

	span.SetAttributes(
		tracing.WeatherConditionKey.String(string(reading.Condition)),
		tracing.HourKey.Int(timeCtx.HourOfDay),
		tracing.DemandScoreKey.Float64(result.DemandScore),
		tracing.CacheHitKey.Bool(hit),
		attribute.String("optimal_area", result.OptimalArea),
	)

	if p.config.RecordSamples {
		p.SaveTrainingData(ctx, NewTrainingSample(loc, reading, timeCtx, result, now))
	}

	return result
}

// SaveTrainingData appends sample to the training log and persists it.
// Persistence failures are logged, never returned.
func (p *Predictor) SaveTrainingData(ctx context.Context, sample TrainingSample) {
	if p.log.Append(sample) {
		logger.Named("predictor").Debug("training log trimmed", zap.Int("samples", p.log.Len()))
	}

	if err := p.log.Persist(ctx); err != nil {
		trainingPersistFailures.Inc()
		logger.WithContext(ctx).Warn("failed to persist training data", zap.Error(err))
		apperrors.CaptureErrorWithContext(ctx, err, "training_log",
			map[string]string{"key": TrainingDataKey})
	}
}

// Retrain refits the model from the current training log.
func (p *Predictor) Retrain() bool {
	return p.model.Train(p.log.Samples())
}

// Stats reports readiness, weights and training log statistics.
func (p *Predictor) Stats() ModelStats {
	return ModelStats{
		Ready:        p.Ready(),
		ModelVersion: ModelVersion,
		Weights:      p.model.Weights(),
		Training:     p.log.Stats(),
		CachedCount:  p.cache.Len(),
	}
}

// purgeCaches drops expired predictions and weather readings past their
// stale window so neither cache grows without bound.
func (p *Predictor) purgeCaches(log *zap.Logger) {
	predictions := p.cache.Purge()
	readings := 0
	if purger, ok := p.weather.(weatherPurger); ok {
		readings = purger.PurgeStale()
	}
	if predictions > 0 || readings > 0 {
		log.Debug("purged expired cache entries",
			zap.Int("predictions", predictions),
			zap.Int("weather_readings", readings),
		)
	}
}

// StartModelTrainingWorker retrains the model from the training log every
// interval until ctx is cancelled. Each tick also purges expired cache entries.
func (p *Predictor) StartModelTrainingWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := logger.Named("predictor")
	log.Info("demand model training worker started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			log.Info("demand model training worker stopped")
			return
		case <-ticker.C:
			trained := p.Retrain()
			log.Info("demand model retrained",
				zap.Bool("adjusted", trained),
				zap.Int("samples", p.log.Len()),
			)
			p.purgeCaches(log)
		}
	}
}
