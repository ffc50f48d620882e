package errorx

import "fmt"

// AlreadyRunningErrorf creates a CliniaError with type ErrorTypeAlreadyRunning and a formatted message
func AlreadyRunningErrorf(format string, args ...any) *CliniaError {
	return newWithStack(
		ErrorTypeAlreadyRunning,
		fmt.Sprintf(format, args...),
	)
}

func IsAlreadyRunningError(e error) bool {
	return hasType(e, ErrorTypeAlreadyRunning)
}
