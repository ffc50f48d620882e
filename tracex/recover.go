package tracex

import (
	"context"

	internaltracex "github.com/clinia/indexsync/internal/tracex"
	"github.com/clinia/indexsync/loggerx"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// RecoverWithStackTrace recovers from a panic and logs the message with a stack trace.
// It should only be used as a defer statement at the beginning of a function.
// i.e. defer tracex.RecoverWithStackTrace(ctx, l, "panic while running migration")
func RecoverWithStackTrace(ctx context.Context, l *loggerx.Logger, msg string) {
	// The recoverer itself must never panic.
	defer func() {
		recover()
	}()

	if r := recover(); r != nil {
		if l == nil {
			return
		}
		l.Error(ctx, msg, StackTraceAttrs(r)...)
	}
}

func StackTraceAttrs(recovered any) []attribute.KeyValue {
	out := []attribute.KeyValue{}
	if recovered == nil {
		return out
	}
	out = append(out, semconv.ExceptionStacktrace(internaltracex.GetStackTrace(3)))
	switch v := recovered.(type) {
	case string:
		out = append(out, semconv.ExceptionMessage(v))
	case error:
		out = append(out, semconv.ExceptionMessage(v.Error()))
	default:
		out = append(out, semconv.ExceptionMessage("unknown panic"))
	}

	return out
}
