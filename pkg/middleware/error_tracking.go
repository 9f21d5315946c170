package middleware

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	apperrors "github.com/richxcame/taxi-demand/pkg/errors"
)

// SentryMiddleware binds a per-request Sentry hub and reports panics.
// Without an initialised client it only clones the hub.
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

// ErrorHandler reports errors attached with c.Error and any 5xx response.
// Place it after SentryMiddleware.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		statusCode := c.Writer.Status()
		duration := time.Since(start)

		reported := false
		for _, ginErr := range c.Errors {
			if apperrors.ShouldReportError(ginErr.Err, statusCode) {
				captureRequestError(c, ginErr.Err, statusCode, duration)
				reported = true
			}
		}

		if statusCode >= 500 && !reported {
			captureRequestError(c, fmt.Errorf("HTTP %d: %s %s", statusCode, c.Request.Method, c.FullPath()), statusCode, duration)
		}
	}
}

func requestHub(c *gin.Context) *sentry.Hub {
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		return hub
	}
	return apperrors.HubFromContext(c.Request.Context())
}

func captureRequestError(c *gin.Context, err error, statusCode int, duration time.Duration) {
	hub := requestHub(c)
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(c.Request)
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("http.method", c.Request.Method)
		scope.SetTag("http.status_code", fmt.Sprintf("%d", statusCode))
		scope.SetTag("endpoint", c.FullPath())
		if correlationID := GetCorrelationID(c); correlationID != "" {
			scope.SetTag("correlation_id", correlationID)
		}
		scope.SetContext("http", sentry.Context{
			"duration_ms": duration.Milliseconds(),
			"remote_addr": c.ClientIP(),
		})
		hub.CaptureException(err)
	})
}
