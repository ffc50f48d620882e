package httpx

import (
	"crypto/tls"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Client calls the admin API of a running indexsync server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	transport  *http.Transport
}

// GetDefaultHTTPClient returns an HTTP client with basic settings
func GetDefaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: httpClientDefaultTimeout,
	}
}

// NewClient returns a client sending its requests to baseURL.
func NewClient(baseURL string, options ...Option) *Client {
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		transport: &http.Transport{
			TLSClientConfig: &tls.Config{},
		},
	}

	client.httpClient = GetDefaultHTTPClient()

	for _, opt := range options {
		opt(client)
	}

	client.httpClient.Transport = client.transport

	return client
}
