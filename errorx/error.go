package errorx

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// CliniaError is the error type returned by every package of this module.
// OriginalError keeps the low-level cause (transport error, decoding error, ...).
type CliniaError struct {
	Type    ErrorType     `json:"type"`
	Message string        `json:"message"`
	Details []CliniaError `json:"details,omitempty"`

	OriginalError error `json:"-"`

	stack Callers
}

var _ error = (*CliniaError)(nil)

var errorMessageRegexp = regexp.MustCompile(`^\[(.*?)\] (.*)$`)

func newWithStack(t ErrorType, msg string) *CliniaError {
	return &CliniaError{
		Type:    t,
		Message: msg,
		stack:   callers(2),
	}
}

func (e *CliniaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Type.String(), e.Message)
	if e.OriginalError != nil {
		fmt.Fprintf(&b, ": %s", e.OriginalError.Error())
	}
	return b.String()
}

func (e *CliniaError) Unwrap() error {
	return e.OriginalError
}

// StackTrace returns the call stack captured when the error was created.
func (e *CliniaError) StackTrace() Callers {
	return e.stack
}

// WithOriginalError attaches the underlying cause to the error.
func (e *CliniaError) WithOriginalError(err error) *CliniaError {
	e.OriginalError = err
	return e
}

// WithDetails appends details to the error.
func (e *CliniaError) WithDetails(details ...*CliniaError) *CliniaError {
	for _, d := range details {
		if d == nil {
			continue
		}
		e.Details = append(e.Details, CliniaError{
			Type:    d.Type,
			Message: d.Message,
			Details: d.Details,
		})
	}
	return e
}

// NewCliniaErrorFromMessage parses a message in the "[TYPE] message" format.
func NewCliniaErrorFromMessage(msg string) (*CliniaError, error) {
	m := errorMessageRegexp.FindStringSubmatch(msg)
	if len(m) < 3 {
		return nil, fmt.Errorf("%q is not a valid error message", msg)
	}

	t, err := ParseErrorType(m[1])
	if err != nil {
		return nil, err
	}

	return &CliniaError{
		Type:    t,
		Message: m[2],
	}, nil
}

// IsCliniaError returns the first CliniaError found in the chain of err.
func IsCliniaError(err error) (*CliniaError, bool) {
	if err == nil {
		return nil, false
	}

	var cerr *CliniaError
	if !errors.As(err, &cerr) {
		return nil, false
	}

	if cerr.Type == ErrorTypeUnspecified {
		return nil, false
	}

	return cerr, true
}

func hasType(err error, t ErrorType) bool {
	cerr, ok := IsCliniaError(err)
	if !ok {
		return false
	}

	return cerr.Type == t
}
