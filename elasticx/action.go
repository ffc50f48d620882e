package elasticx

import (
	"net/http"

	"github.com/clinia/indexsync/errorx"
)

// Action is the audit action of a cluster request.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ActionFromMethod maps an HTTP method to its audit action.
// An empty method is a GET, as in net/http.
func ActionFromMethod(method string) (Action, error) {
	switch method {
	case "", http.MethodGet, http.MethodHead:
		return ActionRead, nil
	case http.MethodPost:
		return ActionCreate, nil
	case http.MethodPut, http.MethodPatch:
		return ActionUpdate, nil
	case http.MethodDelete:
		return ActionDelete, nil
	default:
		return "", errorx.InvalidArgumentErrorf("unknown http method %q", method)
	}
}
