package arangox

import (
	"context"
	"errors"

	arangoDriver "github.com/arangodb/go-driver"
	"github.com/clinia/indexsync/errorx"
)

// wrapError maps a driver error to the error taxonomy. Errors answered by the server are
// internal, the others (connection, timeout) are transport failures.
func wrapError(err error, format string, args ...any) error {
	if _, ok := errorx.IsCliniaError(err); ok {
		return err
	}
	if arangoDriver.IsArangoError(err) && !errors.Is(err, context.DeadlineExceeded) {
		return errorx.InternalErrorf(format, args...).WithOriginalError(err)
	}
	return errorx.TransportFailureErrorf(format, args...).WithOriginalError(err)
}
