package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPToolGetRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "custom", r.Header.Get("X-Test"))
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	h := NewHTTPTool()
	out, err := h.Call(context.Background(), map[string]any{
		"url":     srv.URL,
		"headers": map[string]any{"X-Test": "custom"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, out["status_code"])
	assert.Equal(t, "ok", out["body"])
}

func TestHTTPToolPostRequestWithBody(t *testing.T) {
	var receivedBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		receivedBody = buf[:n]
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	h := NewHTTPTool()
	out, err := h.Call(context.Background(), map[string]any{
		"url":    srv.URL,
		"method": "post",
		"body":   "payload",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, out["status_code"])
	assert.Equal(t, "payload", string(receivedBody))
}

func TestHTTPToolRequiresURL(t *testing.T) {
	h := NewHTTPTool()
	_, err := h.Call(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestHTTPToolRejectsUnsupportedMethod(t *testing.T) {
	h := NewHTTPTool()
	_, err := h.Call(context.Background(), map[string]any{"url": "http://example.com", "method": "DELETE"})
	assert.Error(t, err)
}

func TestHTTPToolName(t *testing.T) {
	assert.Equal(t, "http_request", NewHTTPTool().Name())
}
