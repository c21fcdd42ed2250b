package onec

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onecgate/onecgate/internal/auth"
)

var testCred = auth.Credential{Username: "erp-operator", Password: "erp-password"}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	return client, srv
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)

	client, err := NewClient(Config{BaseURL: "http://erp.local:8080/"})
	require.NoError(t, err)
	assert.Equal(t, "http://erp.local:8080", client.baseURL)
	assert.Equal(t, DefaultRPCPath, client.rpcPath)
}

func TestClient_Call_Success(t *testing.T) {
	var gotRequest rpcRequest

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultRPCPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		username, password, ok := r.BasicAuth()
		require.True(t, ok, "back-end call must carry Basic Auth")
		assert.Equal(t, testCred.Username, username)
		assert.Equal(t, testCred.Password, password)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%q,"result":{"items":["Документ.ЗаказКлиента"]}}`, gotRequest.ID)
	})

	result, err := client.Call(context.Background(), "list_metadata_objects",
		map[string]interface{}{"metaType": "documents"}, testCred)
	require.NoError(t, err)

	assert.Equal(t, "2.0", gotRequest.JSONRPC)
	assert.Equal(t, "list_metadata_objects", gotRequest.Method)
	assert.NotEmpty(t, gotRequest.ID)
	assert.JSONEq(t, `{"items":["Документ.ЗаказКлиента"]}`, string(result))
}

func TestClient_Call_Unauthorized(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Call(context.Background(), "list_metadata_objects", nil, testCred)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err), "401 should classify as unauthorized, got %v", err)
	assert.False(t, IsUnavailable(err))
}

func TestClient_Call_ServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Call(context.Background(), "list_metadata_objects", nil, testCred)
	require.Error(t, err)
	assert.True(t, IsUnavailable(err), "5xx should classify as unavailable, got %v", err)
}

func TestClient_Call_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Call(context.Background(), "list_metadata_objects", nil, testCred)
	require.Error(t, err)
	assert.True(t, IsUnavailable(err), "connection failure should classify as unavailable, got %v", err)
}

func TestClient_Call_Timeout(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	client.timeout = 20 * time.Millisecond

	_, err := client.Call(context.Background(), "list_metadata_objects", nil, testCred)
	require.Error(t, err)
	assert.True(t, IsUnavailable(err), "timeout should classify as unavailable, got %v", err)
}

func TestClient_Call_MalformedEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json at all")
	})

	_, err := client.Call(context.Background(), "list_metadata_objects", nil, testCred)
	require.Error(t, err)
	assert.True(t, IsProtocolError(err), "garbage body should classify as protocol error, got %v", err)
}

func TestClient_Call_IDMismatch(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":"some-other-id","result":{}}`)
	})

	_, err := client.Call(context.Background(), "list_metadata_objects", nil, testCred)
	require.Error(t, err)
	assert.True(t, IsProtocolError(err), "id mismatch should classify as protocol error, got %v", err)
}

func TestClient_Call_RPCError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%q,"error":{"code":-32601,"message":"Method not found"}}`, req.ID)
	})

	_, err := client.Call(context.Background(), "no_such_method", nil, testCred)
	require.Error(t, err)
	require.True(t, IsProtocolError(err), "rpc error object should classify as protocol error, got %v", err)

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, -32601, be.Code)
	assert.Contains(t, be.Message, "Method not found")
}

func TestClient_Call_UnexpectedStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	_, err := client.Call(context.Background(), "list_metadata_objects", nil, testCred)
	require.Error(t, err)
	assert.True(t, IsProtocolError(err), "non-401 4xx should classify as protocol error, got %v", err)
}

func TestClient_HealthCheck(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantErr   bool
		wantCheck func(error) bool
	}{
		{
			name: "healthy",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, DefaultHealthPath, r.URL.Path)
				username, _, ok := r.BasicAuth()
				assert.True(t, ok)
				assert.Equal(t, testCred.Username, username)
				fmt.Fprint(w, `{"status":"healthy"}`)
			},
		},
		{
			name: "unhealthy status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"status":"degraded"}`)
			},
			wantErr:   true,
			wantCheck: IsUnavailable,
		},
		{
			name: "rejected credential",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			wantErr:   true,
			wantCheck: IsUnauthorized,
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "ok")
			},
			wantErr:   true,
			wantCheck: IsProtocolError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, tt.handler)

			err := client.HealthCheck(context.Background(), testCred)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, tt.wantCheck(err), "wrong classification: %v", err)
		})
	}
}

func TestBackendError_Classifiers(t *testing.T) {
	assert.True(t, IsUnauthorized(NewUnauthorizedError("x")))
	assert.True(t, IsUnavailable(NewUnavailableError("x", nil)))
	assert.True(t, IsProtocolError(NewProtocolError("x", nil)))

	plain := fmt.Errorf("plain error")
	assert.False(t, IsUnauthorized(plain))
	assert.False(t, IsUnavailable(plain))
	assert.False(t, IsProtocolError(plain))

	// Classification survives wrapping
	wrapped := fmt.Errorf("call failed: %w", NewUnauthorizedError("x"))
	assert.True(t, IsUnauthorized(wrapped))
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "unauthorized", KindUnauthorized.String())
	assert.Equal(t, "unavailable", KindUnavailable.String())
	assert.Equal(t, "protocol", KindProtocol.String())
}
