package loggerxtest

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/clinia/indexsync/loggerx"
)

func NewTestLogger(t testing.TB) *loggerx.Logger {
	t.Helper()
	return &loggerx.Logger{Logger: slog.New(slog.DiscardHandler)}
}

// NewTestLoggerWithJSONBuffer returns a debug level logger writing JSON lines to the returned buffer.
func NewTestLoggerWithJSONBuffer(t testing.TB) (*loggerx.Logger, *bytes.Buffer) {
	t.Helper()
	buf := new(bytes.Buffer)
	l := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return &loggerx.Logger{Logger: l}, buf
}
