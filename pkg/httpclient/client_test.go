package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/richxcame/taxi-demand/pkg/logger"
	"github.com/richxcame/taxi-demand/pkg/middleware"
	"github.com/richxcame/taxi-demand/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON_SendsQueryAndCorrelationID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather", r.URL.Path)
		assert.Equal(t, "35.68", r.URL.Query().Get("lat"))
		assert.Equal(t, "req-1", r.Header.Get(middleware.CorrelationIDHeader))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Tokyo"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second)
	ctx := logger.ContextWithCorrelationID(context.Background(), "req-1")

	var out struct {
		Name string `json:"name"`
	}
	err := client.GetJSON(ctx, "/weather", url.Values{"lat": {"35.68"}}, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "Tokyo", out.Name)
}

func TestGet_ReturnsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).Get(context.Background(), "/", nil, nil)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, WithRetry(resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	}))

	_, err := client.Get(context.Background(), "/", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetJSON_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	var out map[string]interface{}
	err := NewClient(server.URL, time.Second).GetJSON(context.Background(), "/", nil, nil, &out)
	assert.ErrorIs(t, err, ErrDecodeResponse)
}

func TestIsHTTPRetryable(t *testing.T) {
	assert.True(t, isHTTPRetryable(&HTTPError{StatusCode: 502}))
	assert.False(t, isHTTPRetryable(&HTTPError{StatusCode: 401}))
	assert.False(t, isHTTPRetryable(context.DeadlineExceeded))
	assert.True(t, isHTTPRetryable(errors.New("connection reset")))
}
