package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/clinia/indexsync/errorx"
)

// MakeHTTPRequest sends the request and reads the whole response. Only a failure to reach
// the server is returned as an error, use Response.Err for the status.
func (c *Client) MakeHTTPRequest(ctx context.Context, input *Request) (*Response, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var body io.Reader
	if input.Body != nil {
		requestBodyBytes, err := json.Marshal(input.Body)
		if err != nil {
			return nil, errorx.InvalidArgumentErrorf("could not encode request body").WithOriginalError(err)
		}
		body = bytes.NewBuffer(requestBodyBytes)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, input.Method, c.baseURL+input.Path, body)
	if err != nil {
		return nil, errorx.InvalidArgumentErrorf("could not build request").WithOriginalError(err)
	}

	buildQueryParams(httpRequest, input.QueryParameters)

	if input.Headers != nil {
		httpRequest.Header = input.Headers.Clone()
	}
	if input.Body != nil {
		httpRequest.Header.Set("Content-Type", "application/json")
	}

	startTime := time.Now()

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, errorx.TransportFailureErrorf("%s %s failed", input.Method, input.Path).WithOriginalError(err)
	}

	defer httpResponse.Body.Close()

	respBody, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, errorx.TransportFailureErrorf("could not read response of %s %s", input.Method, input.Path).WithOriginalError(err)
	}

	return &Response{
		StatusCode: httpResponse.StatusCode,
		Body:       respBody,
		Headers:    httpResponse.Header,
		Duration:   time.Since(startTime),
	}, nil
}

func buildQueryParams(httpRequest *http.Request, params url.Values) {
	if len(params) > 0 {
		requestQueryParams := httpRequest.URL.Query()

		for queryParamKey, queryParamValues := range params {
			for _, queryParamValue := range queryParamValues {
				requestQueryParams.Add(queryParamKey, queryParamValue)
			}
		}

		httpRequest.URL.RawQuery = requestQueryParams.Encode()
	}
}
