package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openwallet/nmc-attestor/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(&config.IdentityConfig{
		BaseURL:     srv.URL,
		BearerToken: "test-token",
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestGetNym(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/nyms/nym-1", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"nym-1","source_address":"N1abc","display_name":"Alice"}`))
	})

	nym, err := c.GetNym(context.Background(), "nym-1")
	require.NoError(t, err)
	assert.Equal(t, "nym-1", nym.ID)
	assert.Equal(t, "N1abc", nym.SourceAddress)
}

func TestGetNym_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := c.GetNym(context.Background(), "nym-missing")
	require.ErrorIs(t, err, ErrNymNotFound)
}

func TestSourceAddress(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"nym-1","source_address":"N1abc"}`))
	})

	addr, err := c.SourceAddress(context.Background(), "nym-1")
	require.NoError(t, err)
	assert.Equal(t, "N1abc", addr)
}

func TestSourceAddress_Missing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"nym-1"}`))
	})

	_, err := c.SourceAddress(context.Background(), "nym-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no source address")
}

func TestGetNym_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.GetNym(context.Background(), "nym-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
