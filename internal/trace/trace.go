// Package trace wires OpenTelemetry span export for the relay. Tracing
// is off unless an OTLP endpoint is configured; the proxy then records
// one span per forwarded request or socket.
package trace

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// EndpointEnvVar overrides the trace endpoint when no flag is given.
const EndpointEnvVar = "DEVRELAY_TRACE_ENDPOINT"

// Endpoint resolves the OTLP endpoint: the flag value wins, then the
// environment. Empty means tracing stays off.
func Endpoint(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EndpointEnvVar)
}

// Setup installs a global tracer provider exporting to the given
// OTLP/HTTP endpoint.
//
// Parameters:
//   - ctx: Context for exporter construction
//   - endpoint: Full collector URL (e.g. http://127.0.0.1:4318/v1/traces);
//     empty disables tracing and the returned shutdown is a no-op
//   - serviceName: Reported service.name resource attribute
//
// Returns:
//   - func(context.Context) error: Shutdown hook that flushes pending
//     spans; call it on exit
//   - error: Exporter construction failures
func Setup(ctx context.Context, endpoint, serviceName string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider.Shutdown, nil
}
