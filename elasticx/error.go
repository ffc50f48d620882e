package elasticx

import (
	"io"
	"net/http"

	"github.com/clinia/indexsync/errorx"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Operation names a gateway call. It is attached to every error the gateway returns.
type Operation string

const (
	OperationPing           Operation = "ping"
	OperationListAliases    Operation = "list_aliases"
	OperationGetMapping     Operation = "get_mapping"
	OperationPutTemplate    Operation = "put_index_template"
	OperationBlockWrites    Operation = "block_writes"
	OperationCloneIndex     Operation = "clone_index"
	OperationUpdateAliases  Operation = "update_aliases"
	OperationCreateIndex    Operation = "create_index"
	OperationDeleteIndexes  Operation = "delete_indexes"
	OperationIndexExists    Operation = "index_exists"
	OperationListIndexes    Operation = "list_indexes"
	OperationRefresh        Operation = "refresh"
	OperationCount          Operation = "count"
	OperationWriteDocument  Operation = "write_document"
	OperationDeleteDocument Operation = "delete_document"
	OperationBulkIndex      Operation = "bulk_index"
)

// OperationError ties a typed error to the gateway operation that produced it.
type OperationError struct {
	Operation Operation
	Err       *errorx.CliniaError
}

func (e *OperationError) Error() string {
	return string(e.Operation) + ": " + e.Err.Error()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// OperationOf returns the gateway operation that produced err.
func OperationOf(err error) (Operation, bool) {
	var oerr *OperationError
	if !errors.As(err, &oerr) {
		return "", false
	}
	return oerr.Operation, true
}

func withOperation(op Operation, err *errorx.CliniaError) error {
	return &OperationError{Operation: op, Err: err}
}

// transportError wraps errors raised before a response was received, context errors included.
func transportError(op Operation, err error) error {
	return withOperation(op, errorx.TransportFailureErrorf("%s request failed", op).WithOriginalError(err))
}

// responseError reads the elastic error out of an unsuccessful response.
func responseError(op Operation, res *esapi.Response) error {
	var body []byte
	if res.Body != nil {
		body, _ = io.ReadAll(res.Body)
	}

	reason := elasticErrorReason(body)
	if res.StatusCode == http.StatusNotFound {
		return withOperation(op, errorx.NotFoundErrorf("%s: %s", op, reason))
	}

	return withOperation(op, errorx.ClusterRejectedErrorf("%s rejected with status %d: %s", op, res.StatusCode, reason))
}

func decodeError(op Operation, err error) error {
	return withOperation(op, errorx.InternalErrorf("could not decode %s response", op).WithOriginalError(err))
}

func elasticErrorReason(body []byte) string {
	e := gjson.GetBytes(body, "error")
	switch {
	case e.IsObject():
		if t := e.Get("type").String(); t != "" {
			return t + ": " + e.Get("reason").String()
		}
		return e.Get("reason").String()
	case e.Exists():
		return e.String()
	case len(body) > 0:
		return string(body)
	default:
		return "no response body"
	}
}
