package otelx

import (
	"github.com/pkg/errors"
	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// SetupPrometheusMeterProvider returns a meter provider whose measurements are
// collected by reg.
func SetupPrometheusMeterProvider(serviceName string, reg promclient.Registerer) (*sdkmetric.MeterProvider, error) {
	// The exporter embeds a default OpenTelemetry Reader and implements prometheus.Collector
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		)),
	), nil
}
