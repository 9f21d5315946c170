package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/richxcame/taxi-demand/pkg/logger"
)

// ErrSentryDisabled is returned by InitSentry when no DSN is configured.
// Every capture helper is a no-op in that case.
var ErrSentryDisabled = stderrors.New("sentry DSN is not configured")

// SentryConfig holds configuration for Sentry integration
type SentryConfig struct {
	DSN              string
	Environment      string
	Release          string
	SampleRate       float64
	TracesSampleRate float64
	Debug            bool
	EnableTracing    bool
	ServerName       string
	AttachStacktrace bool
}

// DefaultSentryConfig returns a default Sentry configuration
func DefaultSentryConfig() *SentryConfig {
	return &SentryConfig{
		DSN:              os.Getenv("SENTRY_DSN"),
		Environment:      getEnvironment(),
		Release:          os.Getenv("SENTRY_RELEASE"),
		SampleRate:       getRate("SENTRY_SAMPLE_RATE", 1.0),
		TracesSampleRate: getTracesSampleRate(),
		Debug:            os.Getenv("SENTRY_DEBUG") == "true",
		EnableTracing:    os.Getenv("SENTRY_ENABLE_TRACING") != "false",
		ServerName:       os.Getenv("SERVICE_NAME"),
		AttachStacktrace: true,
	}
}

// InitSentry initializes the Sentry SDK. It returns ErrSentryDisabled
// without touching the SDK when the DSN is empty.
func InitSentry(config *SentryConfig) error {
	if config == nil || config.DSN == "" {
		return ErrSentryDisabled
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              config.DSN,
		Environment:      config.Environment,
		Release:          config.Release,
		SampleRate:       config.SampleRate,
		TracesSampleRate: config.TracesSampleRate,
		Debug:            config.Debug,
		EnableTracing:    config.EnableTracing,
		ServerName:       config.ServerName,
		AttachStacktrace: config.AttachStacktrace,
		BeforeSend:       dropLowSeverity,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return nil
}

func dropLowSeverity(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Level == sentry.LevelInfo || event.Level == sentry.LevelDebug {
		return nil
	}
	return event
}

// Flush flushes the Sentry buffer
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// HubFromContext returns the hub bound to ctx, or a clone of the current hub.
func HubFromContext(ctx context.Context) *sentry.Hub {
	if ctx != nil {
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			return hub
		}
	}
	return sentry.CurrentHub().Clone()
}

// CaptureErrorWithContext captures err on the hub of ctx, tagged with
// component and the given string tags.
func CaptureErrorWithContext(ctx context.Context, err error, component string, tags map[string]string) *sentry.EventID {
	if err == nil {
		return nil
	}

	hub := HubFromContext(ctx)
	var id *sentry.EventID
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("component", component)
		scope.SetTags(tags)
		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			scope.SetTag("correlation_id", correlationID)
		}
		id = hub.CaptureException(err)
	})
	return id
}

// CaptureWarning captures message at warning level on the hub of ctx.
func CaptureWarning(ctx context.Context, message, component string, tags map[string]string) *sentry.EventID {
	hub := HubFromContext(ctx)
	var id *sentry.EventID
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		scope.SetTag("component", component)
		scope.SetTags(tags)
		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			scope.SetTag("correlation_id", correlationID)
		}
		id = hub.CaptureMessage(message)
	})
	return id
}

// IsBusinessError checks if an error is a business logic error that shouldn't be reported
func IsBusinessError(err error) bool {
	if err == nil {
		return false
	}

	businessErrors := []string{
		"validation failed",
		"invalid input",
		"not found",
		"bad request",
	}

	errMsg := strings.ToLower(err.Error())
	for _, businessErr := range businessErrors {
		if strings.Contains(errMsg, businessErr) {
			return true
		}
	}
	return false
}

// ShouldReportError determines if an error should be reported to Sentry
func ShouldReportError(err error, statusCode int) bool {
	if err == nil {
		return false
	}
	if IsBusinessError(err) {
		return false
	}
	// Client errors are the caller's problem, except throttling
	if statusCode >= 400 && statusCode < 500 && statusCode != 429 {
		return false
	}
	return true
}

func getEnvironment() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = os.Getenv("SENTRY_ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}
	return env
}

func getRate(key string, defaultValue float64) float64 {
	rate, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || rate < 0 || rate > 1 {
		return defaultValue
	}
	return rate
}

func getTracesSampleRate() float64 {
	if getEnvironment() == "production" {
		return getRate("SENTRY_TRACES_SAMPLE_RATE", 0.1)
	}
	return getRate("SENTRY_TRACES_SAMPLE_RATE", 1.0)
}
