package command_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/poolsync/internal/auth"
	"github.com/stacklok/poolsync/internal/command"
	"github.com/stacklok/poolsync/internal/httpclient"
	"github.com/stacklok/poolsync/internal/snapshot"
)

type recordedRequest struct {
	path   string
	auth   string
	body   map[string]any
	status int
}

func newCommandServer(t *testing.T, status int) (*httptest.Server, func() recordedRequest) {
	t.Helper()

	var (
		mu   sync.Mutex
		last recordedRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		mu.Lock()
		last = recordedRequest{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: body, status: status}
		mu.Unlock()

		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{}`))
	}))
	server.Config.SetKeepAlivesEnabled(false)
	t.Cleanup(server.Close)

	return server, func() recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func testClient() *auth.Client {
	return auth.NewClient(auth.Credential{Token: "id-token", Expiry: time.Now().Add(time.Hour)})
}

func TestDispatcher_Send(t *testing.T) {
	t.Parallel()

	server, last := newCommandServer(t, http.StatusOK)
	snap, err := snapshot.Parse([]byte(`{"wifi":"gw-42","light":{"status":0}}`))
	require.NoError(t, err)

	cmd, err := command.New(snap, "pool-1", "light.status", 1)
	require.NoError(t, err)

	dispatcher := command.NewDispatcher(httpclient.NewDefaultClient(5*time.Second), server.URL+"/")
	require.NoError(t, dispatcher.Send(context.Background(), testClient(), cmd))

	got := last()
	assert.Equal(t, "/sendPoolCommand", got.path)
	assert.Equal(t, "Bearer id-token", got.auth)
	assert.Equal(t, "gw-42", got.body["gateway"])
	assert.Equal(t, "pool-1", got.body["poolId"])
	assert.Equal(t, "WRP", got.body["operation"])
	assert.Equal(t, "web", got.body["source"])
	assert.Nil(t, got.body["pool"])
	assert.Contains(t, got.body, "pool")
	assert.JSONEq(t, `{"light":{"status":1}}`, got.body["changes"].(string))

	_, err = uuid.Parse(got.body["operationId"].(string))
	assert.NoError(t, err)
}

func TestDispatcher_SendOptions(t *testing.T) {
	t.Parallel()

	server, last := newCommandServer(t, http.StatusOK)
	dispatcher := command.NewDispatcher(
		httpclient.NewDefaultClient(5*time.Second),
		server.URL,
		command.WithOperation("WRX"),
		command.WithSource("cli"),
	)

	err := dispatcher.Send(context.Background(), testClient(), command.Command{PoolID: "pool-1", Path: "present", Changes: `{}`})
	require.NoError(t, err)

	got := last()
	assert.Equal(t, "WRX", got.body["operation"])
	assert.Equal(t, "cli", got.body["source"])
	assert.Nil(t, got.body["gateway"])
}

func TestDispatcher_SendRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
	}{
		{name: "unauthorized", status: http.StatusUnauthorized},
		{name: "server error", status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server, _ := newCommandServer(t, tt.status)
			dispatcher := command.NewDispatcher(httpclient.NewDefaultClient(5*time.Second), server.URL)

			err := dispatcher.Send(context.Background(), testClient(), command.Command{PoolID: "pool-1", Path: "light.status"})
			require.Error(t, err)
			assert.True(t, command.IsCommandDispatchError(err))

			var httpErr *httpclient.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.StatusCode)
		})
	}
}

func TestNew_PropagatesBuildErrors(t *testing.T) {
	t.Parallel()

	snap, err := snapshot.Parse([]byte(`{"light":{"status":0}}`))
	require.NoError(t, err)

	_, err = command.New(snap, "pool-1", "pump.mode", 1)
	require.Error(t, err)
	assert.True(t, command.IsCommandDispatchError(err))
}
