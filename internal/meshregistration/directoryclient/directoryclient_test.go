package directoryclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
)

func testManifest(t *testing.T) meshprimitives.AgentManifest {
	t.Helper()
	builder := meshprimitives.NewAgentManifestBuilder(meshprimitives.RandomAgentID())
	builder, err := builder.Name("mock-agent")
	require.NoError(t, err)
	builder, err = builder.Version("0.1.0")
	require.NoError(t, err)
	manifest, err := builder.Build()
	require.NoError(t, err)
	return manifest
}

func TestClientSignsAndSendsRequests(t *testing.T) {
	var sawIdentityHeader bool
	var sawMethod string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawMethod = r.Method
		sawIdentityHeader = r.Header.Get("X-Agent-Identity") != ""
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, SigningKey: []byte("test-secret")})
	manifest := testManifest(t)

	require.NoError(t, client.Register(context.Background(), manifest))
	assert.Equal(t, http.MethodPost, sawMethod)
	assert.True(t, sawIdentityHeader)

	require.NoError(t, client.Heartbeat(context.Background(), manifest))
	require.NoError(t, client.Deregister(context.Background(), manifest))
	assert.Equal(t, http.MethodDelete, sawMethod)
}

func TestClientSurfacesErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	err := client.Register(context.Background(), testManifest(t))
	require.Error(t, err)
}
