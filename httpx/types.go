package httpx

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/clinia/indexsync/errorx"
)

const httpClientDefaultTimeout = 10 * time.Minute

// Request is the input parameters that will need to be sent with an HTTP request
type Request struct {
	Method          string `validate:"required,oneof=GET POST PUT DELETE"`
	Path            string `validate:"required,startswith=/"`
	Body            any
	Headers         http.Header
	QueryParameters url.Values
}

// Validate validates if the struct contains the required entities or not
func (r *Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return errorx.InvalidArgumentErrorf("invalid request: %s", err.Error())
	}
	return nil
}

// Response struct will contain the entities returned with the HTTP response
type Response struct {
	StatusCode int `validate:"required"`
	Body       []byte
	Headers    http.Header
	Duration   time.Duration
}

// Validate validates if the struct contains the required entities or not
func (r *Response) Validate() error {
	if err := validate.Struct(r); err != nil {
		return errorx.InvalidArgumentErrorf("invalid response: %s", err.Error())
	}
	return nil
}

// Err returns the error carried by a non 2xx response, nil otherwise.
func (r *Response) Err() error {
	if r.StatusCode >= 200 && r.StatusCode < 300 {
		return nil
	}

	var body ErrorResponse
	if err := json.Unmarshal(r.Body, &body); err != nil || body.Error.Type == "" {
		return errorx.InternalErrorf("unexpected response status %d: %s", r.StatusCode, string(r.Body))
	}
	return &body.Error
}

// ErrorResponse is the body of every failed admin API call.
type ErrorResponse struct {
	Error errorx.CliniaError `json:"error"`
	// Result is set when a migration ran and failed.
	Result json.RawMessage `json:"result,omitempty"`
}
