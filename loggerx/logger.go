package loggerx

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/clinia/indexsync/errorx"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Logger struct {
	*slog.Logger
}

type Config struct {
	// Level is one of debug, info, warn or error. Defaults to info.
	Level string `json:"level"`
	// Format is either json or text. Defaults to json.
	Format string `json:"format"`
}

// New builds a logger writing to stderr.
func New(c Config) *Logger {
	return NewWithWriter(os.Stderr, c)
}

func NewWithWriter(w io.Writer, c Config) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Level)}

	var h slog.Handler
	if strings.EqualFold(c.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	return &Logger{slog.New(h)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithError adds the error to the log fields. The error type and stack
// trace are added as well for CliniaError values.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}

	ll := &Logger{l.Logger.With(ErrorAttr(err))}
	if cerr, ok := errorx.IsCliniaError(err); ok {
		ll = ll.WithFields(
			attribute.String("error.type", cerr.Type.String()),
			semconv.ExceptionStacktrace(cerr.StackTrace().String()),
		)
	}
	return ll
}

func (l *Logger) Error(ctx context.Context, msg string, kvs ...attribute.KeyValue) {
	l.Logger.LogAttrs(ctx, slog.LevelError, msg, NewLogFields(kvs...)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, kvs ...attribute.KeyValue) {
	l.Logger.LogAttrs(ctx, slog.LevelWarn, msg, NewLogFields(kvs...)...)
}

func (l *Logger) Info(ctx context.Context, msg string, kvs ...attribute.KeyValue) {
	l.Logger.LogAttrs(ctx, slog.LevelInfo, msg, NewLogFields(kvs...)...)
}

func (l *Logger) Debug(ctx context.Context, msg string, kvs ...attribute.KeyValue) {
	l.Logger.LogAttrs(ctx, slog.LevelDebug, msg, NewLogFields(kvs...)...)
}

func (l *Logger) WithFields(kvs ...attribute.KeyValue) *Logger {
	attrs := NewLogFields(kvs...)
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return &Logger{l.Logger.With(args...)}
}
