package errorx

import "fmt"

// TransportFailureErrorf creates a CliniaError with type ErrorTypeTransportFailure and a formatted message.
// Transport failures cover I/O errors, timeouts and context cancellation.
func TransportFailureErrorf(format string, args ...any) *CliniaError {
	return newWithStack(
		ErrorTypeTransportFailure,
		fmt.Sprintf(format, args...),
	)
}

func IsTransportFailureError(e error) bool {
	return hasType(e, ErrorTypeTransportFailure)
}
