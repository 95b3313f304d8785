package textfmt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClientFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/format", r.URL.Path)
		var req formatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(formatResponse{Text: "- " + req.Text})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	out, err := c.Format(context.Background(), "leaking valve")
	require.NoError(t, err)
	require.Equal(t, "- leaking valve", out)
}

func TestClientFormatServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Format(context.Background(), "text")
	require.Error(t, err)
}

func TestClientFormatUnconfigured(t *testing.T) {
	c := NewClient("", time.Second)
	_, err := c.Format(context.Background(), "text")
	require.Error(t, err)
}
