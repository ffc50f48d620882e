package errorx

type ErrorType string

const (
	// ErrorTypeUnspecified is never returned, it only marks a zero CliniaError.
	ErrorTypeUnspecified        = ErrorType("")
	ErrorTypeTransportFailure   = ErrorType("TRANSPORT_FAILURE")
	ErrorTypeClusterRejected    = ErrorType("CLUSTER_REJECTED")
	ErrorTypeSchema             = ErrorType("SCHEMA_ERROR")
	ErrorTypeNotFound           = ErrorType("NOT_FOUND")
	ErrorTypeInvalidArgument    = ErrorType("INVALID_ARGUMENT")
	ErrorTypeFailedPrecondition = ErrorType("FAILED_PRECONDITION")
	ErrorTypeAlreadyRunning     = ErrorType("ALREADY_RUNNING")
	ErrorTypeInternal           = ErrorType("INTERNAL")
)

func ParseErrorType(s string) (ErrorType, error) {
	e := ErrorType(s)
	if err := e.Validate(); err != nil {
		return ErrorTypeUnspecified, err
	}

	return e, nil
}

func (e ErrorType) String() string {
	return string(e)
}

func (e ErrorType) Validate() error {
	switch e {
	case ErrorTypeTransportFailure,
		ErrorTypeClusterRejected,
		ErrorTypeSchema,
		ErrorTypeNotFound,
		ErrorTypeInvalidArgument,
		ErrorTypeFailedPrecondition,
		ErrorTypeAlreadyRunning,
		ErrorTypeInternal:
		return nil
	default:
		return InvalidArgumentErrorf("invalid error type: %s", e)
	}
}
