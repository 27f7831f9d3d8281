package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Outcomes recorded on the operations counter.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

const exportInterval = 10 * time.Second

// InitMetrics installs a global meter provider exporting over OTLP/HTTP to
// endpoint. With an empty endpoint the global no-op provider stays in place.
func InitMetrics(ctx context.Context, serviceName, environment, endpoint string) (ShutdownFunc, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(endpoint),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	res, err := newResource(ctx, serviceName, environment)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(exportInterval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return mp.Shutdown, nil
}

// Operations counts catalog operations by name and outcome.
type Operations struct {
	counter metric.Int64Counter
}

// NewOperations registers the library.operations counter on the global meter provider.
func NewOperations(scope string) *Operations {
	return newOperations(otel.Meter(scope))
}

func newOperations(meter metric.Meter) *Operations {
	counter, err := meter.Int64Counter("library.operations",
		metric.WithDescription("Catalog operations by outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		otel.Handle(err)
	}
	return &Operations{counter: counter}
}

// Record adds one operation with the given outcome.
func (o *Operations) Record(ctx context.Context, operation, outcome string) {
	if o == nil || o.counter == nil {
		return
	}
	o.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}
