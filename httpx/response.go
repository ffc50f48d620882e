package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/clinia/indexsync/errorx"
)

var statusCodes = map[errorx.ErrorType]int{
	errorx.ErrorTypeInvalidArgument:    http.StatusBadRequest,
	errorx.ErrorTypeNotFound:           http.StatusNotFound,
	errorx.ErrorTypeAlreadyRunning:     http.StatusConflict,
	errorx.ErrorTypeFailedPrecondition: http.StatusPreconditionFailed,
	errorx.ErrorTypeSchema:             http.StatusUnprocessableEntity,
	errorx.ErrorTypeClusterRejected:    http.StatusBadGateway,
	errorx.ErrorTypeTransportFailure:   http.StatusServiceUnavailable,
}

// StatusCode returns the response status matching the error type.
func StatusCode(err error) int {
	if ce, ok := errorx.IsCliniaError(err); ok {
		if code, ok := statusCodes[ce.Type]; ok {
			return code
		}
	}
	return http.StatusInternalServerError
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// WriteError writes an ErrorResponse. Errors other than CliniaError are reported as internal.
func WriteError(w http.ResponseWriter, err error, result any) error {
	ce, ok := errorx.IsCliniaError(err)
	if !ok {
		ce = errorx.InternalErrorf("%s", err.Error())
	}

	body := ErrorResponse{Error: *ce}
	if result != nil {
		raw, merr := json.Marshal(result)
		if merr != nil {
			return merr
		}
		body.Result = raw
	}
	return WriteJSON(w, StatusCode(err), body)
}
