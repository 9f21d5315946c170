package demandforecast

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	predictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taxi_demand_predictions_total",
			Help: "Demand predictions by outcome (computed, cached, fallback)",
		},
		[]string{"outcome"},
	)

	demandScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taxi_demand_score",
			Help:    "Distribution of computed demand scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	weatherRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taxi_demand_weather_requests_total",
			Help: "Weather lookups by outcome (cache_hit, fetched, failed, rate_limited)",
		},
		[]string{"outcome"},
	)

	weatherFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taxi_demand_weather_fallbacks_total",
			Help: "Weather fallbacks by source (stale, static)",
		},
		[]string{"source"},
	)

	trainingSamples = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taxi_demand_training_samples",
			Help: "Number of samples in the training log",
		},
	)

	trainingPersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taxi_demand_training_persist_failures_total",
			Help: "Failed attempts to persist the training log",
		},
	)
)
