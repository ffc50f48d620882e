package otelx

import (
	"context"

	"github.com/clinia/indexsync/errorx"
	"github.com/clinia/indexsync/loggerx"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Tracer struct {
	tracer   trace.Tracer
	shutdown func(context.Context) error
}

// NewTracer builds the tracer described by c. An empty provider yields a noop tracer.
func NewTracer(name string, l *loggerx.Logger, c *Config) (*Tracer, error) {
	switch c.Tracing.Provider {
	case "stdout":
		tp, err := SetupStdoutTracerProvider(c.ServiceName, &c.Tracing)
		if err != nil {
			return nil, err
		}
		l.Info(context.Background(), "stdout tracer configured, sending spans to stdout")
		return &Tracer{tracer: tp.Tracer(name), shutdown: tp.Shutdown}, nil
	case "":
		return NewNoopTracer(name), nil
	default:
		return nil, errorx.InvalidArgumentErrorf("unknown tracing provider %q", c.Tracing.Provider)
	}
}

func NewNoopTracer(name string) *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer(name)}
}

// IsLoaded returns true if the tracer has been loaded.
func (t *Tracer) IsLoaded() bool {
	return t != nil && t.tracer != nil
}

// Tracer returns the underlying OpenTelemetry tracer.
func (t *Tracer) Tracer() trace.Tracer {
	return t.tracer
}

// Shutdown flushes the pending spans.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}
