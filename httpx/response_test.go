package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinia/indexsync/errorx"
)

func TestStatusCode(t *testing.T) {
	for err, code := range map[error]int{
		errorx.InvalidArgumentErrorf("bad"):      http.StatusBadRequest,
		errorx.NotFoundErrorf("missing"):         http.StatusNotFound,
		errorx.AlreadyRunningErrorf("busy"):      http.StatusConflict,
		errorx.FailedPreconditionErrorf("no"):    http.StatusPreconditionFailed,
		errorx.SchemaErrorf("unparsable"):        http.StatusUnprocessableEntity,
		errorx.ClusterRejectedErrorf("rejected"): http.StatusBadGateway,
		errorx.TransportFailureErrorf("timeout"): http.StatusServiceUnavailable,
		errorx.InternalErrorf("boom"):            http.StatusInternalServerError,
		errors.New("plain"):                      http.StatusInternalServerError,
	} {
		assert.Equal(t, code, StatusCode(err), err.Error())
	}
}

func TestWriteError(t *testing.T) {
	t.Run("should write the clinia error with the result", func(t *testing.T) {
		w := httptest.NewRecorder()
		require.NoError(t, WriteError(w, errorx.ClusterRejectedErrorf("alias update rejected"), map[string]string{"phase": "PUBLISHING"}))

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.JSONEq(t, `{
			"error": {"type": "CLUSTER_REJECTED", "message": "alias update rejected"},
			"result": {"phase": "PUBLISHING"}
		}`, w.Body.String())
	})

	t.Run("should report a plain error as internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		require.NoError(t, WriteError(w, errors.New("boom"), nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error": {"type": "INTERNAL", "message": "boom"}}`, w.Body.String())
	})
}
