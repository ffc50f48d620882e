package httpx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetDefaultHTTPClient(t *testing.T) {
	client := GetDefaultHTTPClient()

	assert.Equal(t, httpClientDefaultTimeout, client.Timeout)
}

func TestNewClient(t *testing.T) {
	t.Run("should use the default timeout", func(t *testing.T) {
		client := NewClient("http://localhost:8080/")

		assert.Equal(t, httpClientDefaultTimeout, client.httpClient.Timeout)
		assert.Equal(t, "http://localhost:8080", client.baseURL)
	})

	t.Run("should apply the options", func(t *testing.T) {
		client := NewClient("https://indexsync", WithTimeout(30*time.Second), WithSkipTLSVerification())

		assert.Equal(t, true, client.transport.TLSClientConfig.InsecureSkipVerify)
		assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
	})
}
