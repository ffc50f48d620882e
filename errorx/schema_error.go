package errorx

import "fmt"

// SchemaErrorf creates a CliniaError with type ErrorTypeSchema and a formatted message
func SchemaErrorf(format string, args ...any) *CliniaError {
	return newWithStack(
		ErrorTypeSchema,
		fmt.Sprintf(format, args...),
	)
}

func IsSchemaError(e error) bool {
	return hasType(e, ErrorTypeSchema)
}
