package telemetry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	sentryotel "github.com/getsentry/sentry-go/otel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Setup wires the otel meter provider to the prometheus exporter and,
// when enabled, routes traces to sentry. The returned cleanup flushes
// pending telemetry.
func Setup(sentryEnabled bool, sentryDSN string) (func(), error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	if !sentryEnabled {
		return func() {}, nil
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              sentryDSN,
		EnableTracing:    true,
		TracesSampleRate: 1,
	})
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sentryotel.NewSentrySpanProcessor()))
	otel.SetTracerProvider(tp)

	cleanup := func() {
		tp.Shutdown(context.Background())
		sentry.Flush(2 * time.Second)
	}
	return cleanup, nil
}
