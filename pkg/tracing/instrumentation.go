package tracing

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Storage span attributes
const (
	DBSystemKey     = attribute.Key("db.system")
	DBStatementKey  = attribute.Key("db.statement")
	DBOperationKey  = attribute.Key("db.operation")
	RedisCommandKey = attribute.Key("redis.command")
	RedisKeyKey     = attribute.Key("redis.key")
)

// Demand span attributes
const (
	LocationLatitudeKey  = attribute.Key("location.latitude")
	LocationLongitudeKey = attribute.Key("location.longitude")
	WeatherConditionKey  = attribute.Key("weather.condition")
	HourKey              = attribute.Key("time.hour")
	DemandScoreKey       = attribute.Key("demand.score")
	CacheHitKey          = attribute.Key("cache.hit")
)

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// TraceDBQuery wraps a SQL statement with a client span
func TraceDBQuery(ctx context.Context, tracerName, operation, query string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, fmt.Sprintf("db.%s", operation),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			DBSystemKey.String("postgresql"),
			DBOperationKey.String(operation),
			DBStatementKey.String(query),
		),
	)
	defer span.End()

	err := fn(ctx)
	finish(span, err)
	return err
}

// TraceRedisCommand wraps a Redis command with a client span. A missing key
// is not recorded as an error.
func TraceRedisCommand(ctx context.Context, tracerName, command, key string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, fmt.Sprintf("redis.%s", command),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			DBSystemKey.String("redis"),
			RedisCommandKey.String(command),
			RedisKeyKey.String(key),
		),
	)
	defer span.End()

	err := fn(ctx)
	if errors.Is(err, redis.Nil) {
		finish(span, nil)
	} else {
		finish(span, err)
	}
	return err
}

// TraceExternalAPI wraps external API calls with tracing
func TraceExternalAPI(ctx context.Context, tracerName, serviceName, operation string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, fmt.Sprintf("%s.%s", serviceName, operation),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("external.service", serviceName),
			attribute.String("external.operation", operation),
		),
	)
	defer span.End()

	err := fn(ctx)
	finish(span, err)
	return err
}

// LocationAttributes describes a coordinate on a span
func LocationAttributes(latitude, longitude float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		LocationLatitudeKey.Float64(latitude),
		LocationLongitudeKey.Float64(longitude),
	}
}
