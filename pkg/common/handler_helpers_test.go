package common_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/taxi-demand/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		fallbackMsg    string
		expectHandled  bool
		expectStatus   int
		expectContains string
	}{
		{
			name:          "nil error returns false",
			err:           nil,
			fallbackMsg:   "failed",
			expectHandled: false,
		},
		{
			name:           "AppError keeps its status",
			err:            common.NewNotFoundError("no training data", nil),
			fallbackMsg:    "failed to load",
			expectHandled:  true,
			expectStatus:   http.StatusNotFound,
			expectContains: "no training data",
		},
		{
			name:           "wrapped AppError is unwrapped",
			err:            fmt.Errorf("outer: %w", common.NewValidationError("latitude out of range")),
			fallbackMsg:    "failed",
			expectHandled:  true,
			expectStatus:   http.StatusBadRequest,
			expectContains: "VALIDATION_FAILED",
		},
		{
			name:           "regular error uses fallback",
			err:            errors.New("disk full"),
			fallbackMsg:    "failed to save training data",
			expectHandled:  true,
			expectStatus:   http.StatusInternalServerError,
			expectContains: "failed to save training data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			handled := common.HandleServiceError(c, tt.err, tt.fallbackMsg)

			assert.Equal(t, tt.expectHandled, handled)
			if tt.expectHandled {
				assert.Equal(t, tt.expectStatus, w.Code)
				assert.Contains(t, w.Body.String(), tt.expectContains)
			}
		})
	}
}

func TestBindJSON(t *testing.T) {
	type payload struct {
		Latitude float64 `json:"latitude" binding:"required"`
	}

	t.Run("valid body", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"latitude":35.6}`))
		c.Request.Header.Set("Content-Type", "application/json")

		var p payload
		require.True(t, common.BindJSON(c, &p))
		assert.Equal(t, 35.6, p.Latitude)
	})

	t.Run("invalid body", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		c.Request.Header.Set("Content-Type", "application/json")

		var p payload
		assert.False(t, common.BindJSON(c, &p))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestReadinessProbe(t *testing.T) {
	router := gin.New()
	router.GET("/ready", common.ReadinessProbe("svc", "1.0.0", map[string]func() error{
		"storage": func() error { return nil },
		"weather": func() error { return errors.New("breaker open") },
	}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp common.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not ready", resp.Status)
	assert.Equal(t, "healthy", resp.Checks["storage"].Status)
	assert.Equal(t, "breaker open", resp.Checks["weather"].Message)
}
