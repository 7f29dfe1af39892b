package wecom

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headerContentType = "Content-Type"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Notify_Success(t *testing.T) {
	var got message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get(headerContentType))
		assert.Equal(t, "abc", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/cgi-bin/webhook/send?key=abc", 5*time.Second, discardLogger())
	err := c.Notify(context.Background(), "⚠️ 可能要下雨")

	require.NoError(t, err)
	assert.Equal(t, "text", got.MsgType)
	assert.Equal(t, "⚠️ 可能要下雨", got.Text.Content)
}

func TestClient_Notify_PayloadShape(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, NewClient(srv.URL, time.Second, discardLogger()).Notify(context.Background(), "hello"))

	assert.Equal(t, map[string]any{
		"msgtype": "text",
		"text":    map[string]any{"content": "hello"},
	}, raw)
}

func TestClient_Notify_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second, discardLogger()).Notify(context.Background(), "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestClient_Notify_BotErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"errcode":93000,"errmsg":"invalid webhook url"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second, discardLogger()).Notify(context.Background(), "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "errcode 93000")
}

func TestClient_Notify_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewClient(url, time.Second, discardLogger()).Notify(context.Background(), "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook request")
}

func TestClient_Notify_EmptyURLLogsOnly(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient("", time.Second, slog.New(slog.NewTextHandler(&buf, nil)))

	err := c.Notify(context.Background(), "rain soon")

	require.NoError(t, err)
	assert.False(t, c.Enabled())
	assert.Contains(t, buf.String(), "message not sent")
	assert.Contains(t, buf.String(), "rain soon")
}
