package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/clinia/indexsync/errorx"
)

type HTTPClientTestSuite struct {
	suite.Suite
	testServer *httptest.Server
	client     *Client
}

func TestHTTPClientTestSuite(t *testing.T) {
	suite.Run(t, new(HTTPClientTestSuite))
}

func (s *HTTPClientTestSuite) SetupSuite() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /echo", func(w http.ResponseWriter, r *http.Request) {
		for key, values := range r.URL.Query() {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}

		fmt.Fprint(w, "test server")
	})
	mux.HandleFunc("POST /echo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", r.Header.Get("Content-Type"))
		_, _ = io.Copy(w, r.Body)
	})
	mux.HandleFunc("POST /busy", func(w http.ResponseWriter, _ *http.Request) {
		_ = WriteError(w, errorx.AlreadyRunningErrorf("a migration is already running"), nil)
	})
	s.testServer = httptest.NewServer(mux)

	s.client = NewClient(s.testServer.URL + "/")
}

func (s *HTTPClientTestSuite) TearDownSuite() {
	s.testServer.Close()
}

func (s *HTTPClientTestSuite) TestMakeHTTPRequest_InvalidRequest() {
	ctx := context.Background()

	_, err := s.client.MakeHTTPRequest(ctx, &Request{
		Path: "/echo",
	})

	s.Assert().True(errorx.IsInvalidArgumentError(err))
}

func (s *HTTPClientTestSuite) TestMakeHTTPRequest_SuccessfulHTTPRequest() {
	ctx := context.Background()

	request := &Request{
		Method: http.MethodGet,
		Path:   "/echo",
		QueryParameters: map[string][]string{
			"test": {"test1", "test2"},
		},
	}

	response, err := s.client.MakeHTTPRequest(ctx, request)
	if err != nil {
		s.FailNow("unable to make http request to the test server: ", err)
		return
	}

	s.Assert().Equal(http.StatusOK, response.StatusCode)
	s.Assert().Equal("test server", string(response.Body))
	s.Assert().Equal(request.QueryParameters["test"], response.Headers.Values("test"))
	s.Assert().NoError(response.Err())
}

func (s *HTTPClientTestSuite) TestMakeHTTPRequest_JSONBody() {
	response, err := s.client.MakeHTTPRequest(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "/echo",
		Body:   map[string]string{"family": "analyses"},
	})
	s.Require().NoError(err)

	s.Assert().Equal("application/json", response.Headers.Get("Content-Type"))
	s.Assert().JSONEq(`{"family":"analyses"}`, string(response.Body))
}

func (s *HTTPClientTestSuite) TestMakeHTTPRequest_ErrorResponse() {
	response, err := s.client.MakeHTTPRequest(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "/busy",
	})
	s.Require().NoError(err)

	s.Assert().Equal(http.StatusConflict, response.StatusCode)
	s.Assert().True(errorx.IsAlreadyRunningError(response.Err()))
}

func (s *HTTPClientTestSuite) TestMakeHTTPRequest_Unreachable() {
	client := NewClient("http://127.0.0.1:1")

	_, err := client.MakeHTTPRequest(context.Background(), &Request{
		Method: http.MethodGet,
		Path:   "/status",
	})

	s.Assert().True(errorx.IsTransportFailureError(err))
}
