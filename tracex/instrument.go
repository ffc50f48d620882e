package tracex

import (
	"context"

	"github.com/clinia/indexsync/loggerx"
	"github.com/clinia/indexsync/otelx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const ComponentNameSeparator = "."

func ComponentName(packageName, structName string) string {
	return packageName + ComponentNameSeparator + structName
}

/*
Instrument starts a span named after the component and returns a logger carrying
the same attributes. `span.End()` must be called at the end of using the span.

	const myComponentName = "migrate.Migrator"

	func (m *Migrator) instrument(ctx context.Context, name string, kvs ...attribute.KeyValue) (context.Context, trace.Span, *loggerx.Logger) {
		return tracex.Instrument(ctx, m.l, m.t, myComponentName, name, kvs...)
	}
*/
func Instrument(ctx context.Context, l *loggerx.Logger, t *otelx.Tracer, componentName string, name string, kvs ...attribute.KeyValue) (context.Context, trace.Span, *loggerx.Logger) {
	fullComponentName := ComponentName(componentName, name)
	ctx, span := t.Tracer().Start(ctx, fullComponentName, trace.WithAttributes(kvs...))
	ll := l.WithFields(append(kvs[:len(kvs):len(kvs)], attribute.String("component", fullComponentName))...)
	return ctx, span, ll
}

// RecordError marks the span as failed. A nil error is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
