package internaltracex

import (
	"fmt"
	"runtime"
	"strings"
)

const maxStackTraceSize = 1024

// GetStackTrace returns the stack trace of the caller, skipping skipLevels frames
// (GetStackTrace itself included). The output is capped to roughly 1KiB.
func GetStackTrace(skipLevels int) string {
	pc := make([]uintptr, 16)
	n := runtime.Callers(skipLevels, pc)
	frames := runtime.CallersFrames(pc[:n])

	var sb strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&sb, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more || sb.Len() > maxStackTraceSize {
			break
		}
	}

	return sb.String()
}
