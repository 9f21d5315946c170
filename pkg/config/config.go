package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends understood by the blob store factory.
const (
	StorageFile     = "file"
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageS3       = "s3"
)

// Bounds for the weather timeout. The upstream provider usually answers well
// under a second, anything beyond a minute is a misconfiguration.
const (
	DefaultWeatherTimeoutSeconds = 8
	MaxWeatherTimeoutSeconds     = 60
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Weather    WeatherConfig
	Predictor  PredictorConfig
	Storage    StorageConfig
	Redis      RedisConfig
	Database   DatabaseConfig
	S3         S3Config
	Resilience ResilienceConfig
	Tracing    TracingConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port        string
	Environment string
	ServiceName string
	CORSOrigins string // Comma-separated list of allowed origins
}

// WeatherConfig configures the upstream weather provider and its client-side budget.
type WeatherConfig struct {
	APIKey            string
	BaseURL           string
	TimeoutSeconds    int
	RateLimit         int
	RateWindowSeconds int
	CacheTTLSeconds   int
}

// PredictorConfig configures the prediction cache and the training log.
type PredictorConfig struct {
	CacheTTLSeconds   int
	CacheMaxEntries   int
	TrainingLogMax    int
	TrainingLogTrimTo int
	RecordSamples     bool
}

// StorageConfig selects where training data is persisted.
type StorageConfig struct {
	Backend string
	Path    string
	Table   string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string // "pgx" or "postgres" (lib/pq)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// S3Config locates the bucket used by the s3 storage backend. Empty
// credentials fall back to the default AWS credential chain.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // for S3-compatible stores such as MinIO
	AccessKeyID     string
	SecretAccessKey string
}

// ResilienceConfig groups runtime resilience controls
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig captures breaker tuning for the weather provider
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	TimeoutSeconds   int
	IntervalSeconds  int
}

// TracingConfig configures the OTLP exporter.
type TracingConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRate   float64
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8095"),
			Environment: getEnv("ENVIRONMENT", "development"),
			ServiceName: serviceName,
			CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Weather: WeatherConfig{
			APIKey:            getEnv("WEATHER_API_KEY", ""),
			BaseURL:           getEnv("WEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"),
			TimeoutSeconds:    getEnvAsInt("WEATHER_TIMEOUT_SECONDS", DefaultWeatherTimeoutSeconds),
			RateLimit:         getEnvAsInt("WEATHER_RATE_LIMIT", 50),
			RateWindowSeconds: getEnvAsInt("WEATHER_RATE_WINDOW_SECONDS", 60),
			CacheTTLSeconds:   getEnvAsInt("WEATHER_CACHE_TTL_SECONDS", 600),
		},
		Predictor: PredictorConfig{
			CacheTTLSeconds:   getEnvAsInt("PREDICTION_CACHE_TTL_SECONDS", 300),
			CacheMaxEntries:   getEnvAsInt("PREDICTION_CACHE_MAX_ENTRIES", 0),
			TrainingLogMax:    getEnvAsInt("TRAINING_LOG_MAX", 10000),
			TrainingLogTrimTo: getEnvAsInt("TRAINING_LOG_TRIM", 8000),
			RecordSamples:     getEnvAsBool("RECORD_SAMPLES", true),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageFile)),
			Path:    getEnv("STORAGE_PATH", "./data"),
			Table:   getEnv("STORAGE_TABLE", "demand_blobs"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "pgx"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "taxidemand"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		S3: S3Config{
			Bucket:          getEnv("S3_BUCKET", ""),
			Prefix:          getEnv("S3_PREFIX", "taxi-demand/"),
			Region:          getEnv("AWS_REGION", "ap-northeast-1"),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          getEnvAsBool("CB_ENABLED", true),
				FailureThreshold: getEnvAsInt("CB_FAILURE_THRESHOLD", 5),
				TimeoutSeconds:   getEnvAsInt("CB_TIMEOUT_SECONDS", 30),
				IntervalSeconds:  getEnvAsInt("CB_INTERVAL_SECONDS", 60),
			},
		},
		Tracing: TracingConfig{
			Enabled:      getEnvAsBool("TRACING_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvAsFloat("TRACING_SAMPLE_RATE", 1.0),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Weather.TimeoutSeconds <= 0 || c.Weather.TimeoutSeconds > MaxWeatherTimeoutSeconds {
		return fmt.Errorf("WEATHER_TIMEOUT_SECONDS must be between 1 and %d, got %d", MaxWeatherTimeoutSeconds, c.Weather.TimeoutSeconds)
	}
	if c.Weather.RateLimit <= 0 {
		return fmt.Errorf("WEATHER_RATE_LIMIT must be positive, got %d", c.Weather.RateLimit)
	}
	if c.Weather.RateWindowSeconds <= 0 {
		return fmt.Errorf("WEATHER_RATE_WINDOW_SECONDS must be positive, got %d", c.Weather.RateWindowSeconds)
	}
	if c.Weather.CacheTTLSeconds <= 0 {
		return fmt.Errorf("WEATHER_CACHE_TTL_SECONDS must be positive, got %d", c.Weather.CacheTTLSeconds)
	}
	if c.Predictor.CacheTTLSeconds <= 0 {
		return fmt.Errorf("PREDICTION_CACHE_TTL_SECONDS must be positive, got %d", c.Predictor.CacheTTLSeconds)
	}
	if c.Predictor.CacheMaxEntries < 0 {
		return fmt.Errorf("PREDICTION_CACHE_MAX_ENTRIES must not be negative, got %d", c.Predictor.CacheMaxEntries)
	}
	if c.Predictor.TrainingLogMax <= 0 {
		return fmt.Errorf("TRAINING_LOG_MAX must be positive, got %d", c.Predictor.TrainingLogMax)
	}
	if c.Predictor.TrainingLogTrimTo <= 0 || c.Predictor.TrainingLogTrimTo > c.Predictor.TrainingLogMax {
		return fmt.Errorf("TRAINING_LOG_TRIM must be between 1 and TRAINING_LOG_MAX (%d), got %d", c.Predictor.TrainingLogMax, c.Predictor.TrainingLogTrimTo)
	}
	switch c.Storage.Backend {
	case StorageFile, StorageMemory, StorageRedis, StoragePostgres:
	case StorageS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND is s3")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND %q is not one of file, memory, redis, postgres, s3", c.Storage.Backend)
	}
	if c.Database.Driver != "pgx" && c.Database.Driver != "postgres" {
		return fmt.Errorf("DB_DRIVER %q is not one of pgx, postgres", c.Database.Driver)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATE must be between 0 and 1, got %v", c.Tracing.SampleRate)
	}
	if c.Resilience.CircuitBreaker.FailureThreshold <= 0 {
		c.Resilience.CircuitBreaker.FailureThreshold = 5
	}
	if c.Resilience.CircuitBreaker.TimeoutSeconds <= 0 {
		c.Resilience.CircuitBreaker.TimeoutSeconds = 30
	}
	if c.Resilience.CircuitBreaker.IntervalSeconds <= 0 {
		c.Resilience.CircuitBreaker.IntervalSeconds = 60
	}
	return nil
}

// WeatherTimeout returns the per-request deadline for the weather provider.
func (c WeatherConfig) WeatherTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RateWindow returns the weather request budget window.
func (c WeatherConfig) RateWindow() time.Duration {
	return time.Duration(c.RateWindowSeconds) * time.Second
}

// CacheTTL returns how long a weather reading stays fresh.
func (c WeatherConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// CacheTTL returns how long a prediction stays fresh.
func (c PredictorConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
