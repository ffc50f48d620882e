package errorx

import "fmt"

// ClusterRejectedErrorf creates a CliniaError with type ErrorTypeClusterRejected and a formatted message
func ClusterRejectedErrorf(format string, args ...any) *CliniaError {
	return newWithStack(
		ErrorTypeClusterRejected,
		fmt.Sprintf(format, args...),
	)
}

func IsClusterRejectedError(e error) bool {
	return hasType(e, ErrorTypeClusterRejected)
}
