package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/taxi-demand/internal/demandforecast"
	"github.com/richxcame/taxi-demand/pkg/common"
	"github.com/richxcame/taxi-demand/pkg/config"
	apperrors "github.com/richxcame/taxi-demand/pkg/errors"
	"github.com/richxcame/taxi-demand/pkg/health"
	"github.com/richxcame/taxi-demand/pkg/logger"
	"github.com/richxcame/taxi-demand/pkg/middleware"
	"github.com/richxcame/taxi-demand/pkg/tracing"
	"go.uber.org/zap"
)

const (
	serviceName    = "taxi-demand"
	serviceVersion = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.Load(serviceName)
	if err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Server.Environment); err != nil {
		stdlog.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize tracing
	if _, err := tracing.InitTracer(tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Server.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	}, logger.Get()); err != nil {
		logger.Warn("Failed to initialize tracing, continuing without it", zap.Error(err))
	}

	// Initialize error tracking
	sentryConfig := apperrors.DefaultSentryConfig()
	sentryConfig.ServerName = serviceName
	sentryConfig.Release = serviceVersion
	if err := apperrors.InitSentry(sentryConfig); err != nil {
		if errors.Is(err, apperrors.ErrSentryDisabled) {
			logger.Info("Sentry not configured, error tracking disabled")
		} else {
			logger.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
		}
	}
	defer apperrors.Flush(2 * time.Second)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	initCtx, cancelInit := context.WithTimeout(rootCtx, 30*time.Second)
	components, cleanup, err := demandforecast.Bootstrap(initCtx, cfg)
	cancelInit()
	if err != nil {
		logger.Fatal("Failed to initialize demand predictor", zap.Error(err))
	}
	defer cleanup()

	handler := demandforecast.NewHandler(components.Predictor, components.Weather)

	// Periodically refit the model from recorded samples
	go components.Predictor.StartModelTrainingWorker(rootCtx, time.Hour)

	// Setup Gin router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.TracingMiddleware(serviceName))
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	router.Use(middleware.Metrics(serviceName))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.RequestTimeout(cfg.Weather.WeatherTimeout() + 5*time.Second))

	// Health check endpoints
	router.GET("/healthz", common.HealthCheck(serviceName, serviceVersion))

	healthChecks := map[string]func() error{
		"storage": func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return components.Store.Ping(ctx)
		},
		"predictor": func() error {
			if !components.Predictor.Ready() {
				return common.NewServiceUnavailableError("predictor not initialized", nil)
			}
			return nil
		},
	}
	router.GET("/health/ready", common.ReadinessProbe(serviceName, serviceVersion, healthChecks))

	deepChecker := health.NewDeepChecker(health.DeepCheckerConfig{
		Version:  serviceVersion,
		Timeout:  2 * time.Second,
		CacheTTL: 10 * time.Second,
	})
	deepChecker.AddDependency("storage", components.Store, true)
	deepChecker.AddCircuitBreaker("weather-provider", components.Breaker)
	router.GET("/health/deep", deepChecker.GinHandler())

	// Demand API routes
	handler.RegisterRoutes(router.Group("/api/v1/demand"))

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Weather.WeatherTimeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Info("Taxi demand service starting",
			zap.String("port", cfg.Server.Port),
			zap.String("storage", cfg.Storage.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down taxi demand service...")
	cancelRoot()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := tracing.Shutdown(ctx); err != nil {
		logger.Warn("Failed to flush traces", zap.Error(err))
	}

	logger.Info("Taxi demand service stopped")
}
