// Package otel provides lightweight wrapper functions
// to record OpenTelemetry metrics about Slack traffic.
package otel

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const name = "github.com/tzrikka/slackdevkit/internal/otel"

// InitMetrics sets the global meter provider, exporting to an OTLP/HTTP collector
// (configured with the standard "OTEL_EXPORTER_OTLP_*" environment variables).
// If export is disabled, metrics are still recorded but never leave the process.
func InitMetrics(ctx context.Context, export bool) (*metric.MeterProvider, error) {
	opts := []metric.Option{
		metric.WithResource(resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName("slackdevkit"))),
	}

	if export {
		exporter, err := otlpmetrichttp.New(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, metric.WithReader(metric.NewPeriodicReader(exporter)))
	}

	provider := metric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)
	return provider, nil
}

// IncrementCounter increments a metric counter. Attributes are optional.
func IncrementCounter(ctx context.Context, counterName string, incr int64, attrs map[string]string) {
	meter := otel.GetMeterProvider().Meter(name)
	counter, err := meter.Int64Counter(counterName)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("name", counterName).Any("attrs", attrs).
			Msg("failed to increment metric counter")
		return
	}

	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		if v == "" {
			continue
		}
		kvs = append(kvs, attribute.String(k, v))
	}

	counter.Add(ctx, incr, otelmetric.WithAttributes(kvs...))
}

// RequestRejected records an inbound request that failed verification.
func RequestRejected(ctx context.Context, reason string) {
	IncrementCounter(ctx, "slack.requests.rejected", 1, map[string]string{"reason": reason})
}

// APICalled records an outbound Slack API call, and its outcome:
// "ok", a Slack error code (e.g. "invalid_auth"), or "transport_error".
func APICalled(ctx context.Context, method, outcome string) {
	IncrementCounter(ctx, "slack.api.calls", 1, map[string]string{"method": method, "outcome": outcome})
}

// TokenRefreshed records an OAuth token refresh attempt.
func TokenRefreshed(ctx context.Context, teamID, outcome string) {
	IncrementCounter(ctx, "slack.token.refreshes", 1, map[string]string{"team_id": teamID, "outcome": outcome})
}
