package testx

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
)

// executeRequest records the response of h to req.
func executeRequest(req *http.Request, h http.Handler) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	return rr
}

func unmarshalBody[T any](res *httptest.ResponseRecorder) T {
	var data T
	_ = json.Unmarshal(res.Body.Bytes(), &data)
	return data
}

// PostJson sends a POST request to h and decodes the JSON response body into T. The
// recorder body is left intact.
func PostJson[T any](h http.Handler, url string, jsonStr string) (*httptest.ResponseRecorder, T) {
	var body io.Reader
	if jsonStr != "" {
		body = bytes.NewBufferString(jsonStr)
	}
	req := httptest.NewRequest(http.MethodPost, url, body)
	req.Header.Set("Content-Type", "application/json")

	res := executeRequest(req, h)
	return res, unmarshalBody[T](res)
}

func GetJson[T any](h http.Handler, url string) (*httptest.ResponseRecorder, T) {
	req := httptest.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("Accept", "application/json")

	res := executeRequest(req, h)
	return res, unmarshalBody[T](res)
}

func Get(h http.Handler, url string) *httptest.ResponseRecorder {
	return executeRequest(httptest.NewRequest(http.MethodGet, url, nil), h)
}
