package otelx

import (
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func SetupStdoutTracerProvider(serviceName string, c *TracerConfig) (*sdktrace.TracerProvider, error) {
	opts := []stdouttrace.Option{}

	if c.Pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	if c.Writer != nil {
		opts = append(opts, stdouttrace.WithWriter(c.Writer))
	}

	exp, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	), nil
}
