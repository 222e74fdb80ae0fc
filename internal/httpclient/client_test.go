package httpclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/poolsync/internal/httpclient"
)

// newTestServer creates a new test server with keep-alives disabled.
// This prevents flaky tests when running in parallel, as closing a server
// with keep-alives enabled can affect other tests sharing the HTTP transport.
func newTestServer(handler http.Handler) *httptest.Server {
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	return server
}

func TestNewDefaultClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		timeout time.Duration
	}{
		{name: "custom timeout", timeout: 5 * time.Second},
		{name: "zero timeout uses default", timeout: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := httpclient.NewDefaultClient(tt.timeout)

			require.NotNil(t, client)
		})
	}
}

func TestDefaultClient_Get(t *testing.T) {
	t.Parallel()

	var receivedAuth, receivedAccept, receivedUserAgent string
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		receivedAccept = r.Header.Get("Accept")
		receivedUserAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"main":{"temperature":26.5}}`))
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(30 * time.Second)
	data, err := client.Get(context.Background(), server.URL, httpclient.WithBearerToken("tok"))

	require.NoError(t, err)
	assert.JSONEq(t, `{"main":{"temperature":26.5}}`, string(data))
	assert.Equal(t, "Bearer tok", receivedAuth)
	assert.Equal(t, "application/json", receivedAccept)
	assert.True(t, strings.HasPrefix(receivedUserAgent, "poolsync/"))
}

func TestDefaultClient_PostJSON(t *testing.T) {
	t.Parallel()

	var receivedBody map[string]any
	var receivedContentType, receivedCustom string
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		receivedContentType = r.Header.Get("Content-Type")
		receivedCustom = r.Header.Get("X-Custom")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &receivedBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(0)
	data, err := client.PostJSON(context.Background(), server.URL,
		map[string]any{"operation": "WRP"}, httpclient.WithHeader("X-Custom", "yes"))

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
	assert.Equal(t, "WRP", receivedBody["operation"])
	assert.Equal(t, "application/json; charset=UTF-8", receivedContentType)
	assert.Equal(t, "yes", receivedCustom)
}

func TestDefaultClient_HTTPErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		statusCode   int
		responseBody string
		clientError  bool
		serverError  bool
	}{
		{
			name:         "400 keeps the error envelope",
			statusCode:   http.StatusBadRequest,
			responseBody: `{"error":{"code":400,"message":"INVALID_PASSWORD","status":"INVALID_ARGUMENT"}}`,
			clientError:  true,
		},
		{
			name:         "503 is a server error",
			statusCode:   http.StatusServiceUnavailable,
			responseBody: "unavailable",
			serverError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			client := httpclient.NewDefaultClient(30 * time.Second)
			_, err := client.PostJSON(context.Background(), server.URL+"/v1/accounts?key=secret", map[string]string{})

			require.Error(t, err)
			var httpErr *httpclient.HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.statusCode, httpErr.StatusCode)
			assert.Equal(t, tt.responseBody, string(httpErr.Body))
			assert.Equal(t, tt.clientError, httpErr.IsClientError())
			assert.Equal(t, tt.serverError, httpErr.IsServerError())
			assert.NotContains(t, httpErr.Error(), "secret", "API key must not leak into errors")
		})
	}
}

func TestDefaultClient_ContextCancellation(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := httpclient.NewDefaultClient(30 * time.Second)
	_, err := client.Get(ctx, server.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute request")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultClient_TransportErrorRedactsQuery(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := server.URL
	server.Close()

	client := httpclient.NewDefaultClient(time.Second)
	_, err := client.PostJSON(context.Background(), addr+"/v1/token?key=secret-api-key", map[string]string{})

	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-api-key")
}

func TestHTTPError(t *testing.T) {
	t.Parallel()

	err := httpclient.NewHTTPError(404, "http://example.com", "Not Found")

	assert.Equal(t, "HTTP 404 for URL http://example.com: Not Found", err.Error())
}
