package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/richxcame/taxi-demand/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (r *eventRecorder) Events() []*sentry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*sentry.Event(nil), r.events...)
}

func recordingContext(t *testing.T) (context.Context, *eventRecorder) {
	t.Helper()
	rec := &eventRecorder{}
	client, err := sentry.NewClient(sentry.ClientOptions{
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			rec.mu.Lock()
			rec.events = append(rec.events, event)
			rec.mu.Unlock()
			return nil
		},
	})
	require.NoError(t, err)
	return sentry.SetHubOnContext(context.Background(), sentry.NewHub(client, sentry.NewScope())), rec
}

// ============================================================================
// CONFIGURATION
// ============================================================================

func TestInitSentry_DisabledWithoutDSN(t *testing.T) {
	assert.ErrorIs(t, InitSentry(nil), ErrSentryDisabled)
	assert.ErrorIs(t, InitSentry(&SentryConfig{Environment: "production"}), ErrSentryDisabled)
}

func TestDefaultSentryConfig_ReadsEnvironment(t *testing.T) {
	t.Setenv("SENTRY_DSN", "https://public@sentry.example.com/1")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SENTRY_SAMPLE_RATE", "0.5")
	t.Setenv("SENTRY_TRACES_SAMPLE_RATE", "2")
	t.Setenv("SENTRY_DEBUG", "true")
	t.Setenv("SERVICE_NAME", "taxi-demand")

	cfg := DefaultSentryConfig()

	assert.Equal(t, "https://public@sentry.example.com/1", cfg.DSN)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 0.5, cfg.SampleRate)
	assert.Equal(t, 0.1, cfg.TracesSampleRate)
	assert.True(t, cfg.Debug)
	assert.True(t, cfg.EnableTracing)
	assert.Equal(t, "taxi-demand", cfg.ServerName)
}

func TestDefaultSentryConfig_Defaults(t *testing.T) {
	t.Setenv("SENTRY_DSN", "")
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("SENTRY_ENVIRONMENT", "")
	t.Setenv("SENTRY_SAMPLE_RATE", "")
	t.Setenv("SENTRY_TRACES_SAMPLE_RATE", "")
	t.Setenv("SENTRY_ENABLE_TRACING", "false")

	cfg := DefaultSentryConfig()

	assert.Empty(t, cfg.DSN)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.Equal(t, 1.0, cfg.TracesSampleRate)
	assert.False(t, cfg.EnableTracing)
}

func TestDropLowSeverity(t *testing.T) {
	assert.Nil(t, dropLowSeverity(&sentry.Event{Level: sentry.LevelInfo}, nil))
	assert.Nil(t, dropLowSeverity(&sentry.Event{Level: sentry.LevelDebug}, nil))
	assert.NotNil(t, dropLowSeverity(&sentry.Event{Level: sentry.LevelWarning}, nil))
	assert.NotNil(t, dropLowSeverity(&sentry.Event{Level: sentry.LevelError}, nil))
}

// ============================================================================
// CAPTURE
// ============================================================================

func TestCaptureErrorWithContext_TagsEvent(t *testing.T) {
	ctx, rec := recordingContext(t)
	ctx = logger.ContextWithCorrelationID(ctx, "req-42")

	id := CaptureErrorWithContext(ctx, stderrors.New("disk full"), "training_log", map[string]string{"key": "samples"})

	require.NotNil(t, id)
	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, sentry.LevelError, events[0].Level)
	assert.Equal(t, "training_log", events[0].Tags["component"])
	assert.Equal(t, "samples", events[0].Tags["key"])
	assert.Equal(t, "req-42", events[0].Tags["correlation_id"])
	require.NotEmpty(t, events[0].Exception)
	assert.Equal(t, "disk full", events[0].Exception[len(events[0].Exception)-1].Value)
}

func TestCaptureErrorWithContext_NilError(t *testing.T) {
	ctx, rec := recordingContext(t)

	assert.Nil(t, CaptureErrorWithContext(ctx, nil, "training_log", nil))
	assert.Empty(t, rec.Events())
}

func TestCaptureWarning(t *testing.T) {
	ctx, rec := recordingContext(t)

	CaptureWarning(ctx, "provider circuit open", "weather", map[string]string{"provider": "openweather"})

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, sentry.LevelWarning, events[0].Level)
	assert.Equal(t, "provider circuit open", events[0].Message)
	assert.Equal(t, "weather", events[0].Tags["component"])
	assert.Equal(t, "openweather", events[0].Tags["provider"])
	_, hasCorrelation := events[0].Tags["correlation_id"]
	assert.False(t, hasCorrelation)
}

func TestCaptureWithoutClientIsNoop(t *testing.T) {
	assert.Nil(t, CaptureErrorWithContext(context.Background(), stderrors.New("boom"), "test", nil))
	assert.Nil(t, CaptureWarning(context.Background(), "boom", "test", nil))
}

// ============================================================================
// FILTERING
// ============================================================================

func TestShouldReportError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   bool
	}{
		{"nil error", nil, 500, false},
		{"server error", stderrors.New("connection reset"), 500, true},
		{"validation", stderrors.New("Validation failed: latitude"), 500, false},
		{"wrapped not found", fmt.Errorf("load: %w", stderrors.New("key not found")), 500, false},
		{"client error", stderrors.New("unexpected token"), 400, false},
		{"throttled", stderrors.New("too many requests"), 429, true},
		{"no status", stderrors.New("persist failed"), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldReportError(tt.err, tt.status))
		})
	}
}
