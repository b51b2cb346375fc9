package otel

import (
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestIncrementCounter(t *testing.T) {
	reader := metric.NewManualReader()
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(metric.NewMeterProvider(metric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	ctx := t.Context()
	APICalled(ctx, "chat.postMessage", "ok")
	APICalled(ctx, "chat.postMessage", "ok")
	APICalled(ctx, "chat.postMessage", "invalid_auth")
	RequestRejected(ctx, "")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q data type = %T, want Sum[int64]", m.Name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				key := m.Name
				if v, ok := dp.Attributes.Value(attribute.Key("outcome")); ok {
					key += "/" + v.AsString()
				}
				if dp.Attributes.HasValue(attribute.Key("reason")) {
					t.Errorf("empty attribute %q should be omitted", "reason")
				}
				got[key] += dp.Value
			}
		}
	}

	want := map[string]int64{
		"slack.api.calls/ok":           2,
		"slack.api.calls/invalid_auth": 1,
		"slack.requests.rejected":      1,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("counter %q = %d, want %d", k, got[k], v)
		}
	}
}

func TestInitMetricsWithoutExport(t *testing.T) {
	prev := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	mp, err := InitMetrics(t.Context(), false)
	if err != nil {
		t.Fatalf("InitMetrics() error = %v", err)
	}
	if err := mp.Shutdown(t.Context()); err != nil {
		t.Errorf("MeterProvider.Shutdown() error = %v", err)
	}
}
