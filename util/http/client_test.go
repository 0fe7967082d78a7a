package http

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
)

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	client := NewHTTPClient()
	require.NotNil(t, client)

	httpClient, ok := client.(*HTTPClient)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, httpClient.client.Timeout)
}

func TestHTTPClient_DoHTTPRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		requestParam *RequestParam
		handler      http.HandlerFunc
		wantErrMsg   string
	}{
		{
			name:         "GET 请求",
			requestParam: &RequestParam{Method: http.MethodGet},
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				_, _ = w.Write([]byte(`{"ok": true}`))
			},
		},
		{
			name: "结构体 body 按 JSON 发送",
			requestParam: &RequestParam{
				Method: http.MethodPost,
				Body:   map[string]any{"mime_type": "image/png"},
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var data map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&data))
				assert.Equal(t, "image/png", data["mime_type"])
			},
		},
		{
			name: "[]byte body 原样发送",
			requestParam: &RequestParam{
				Method: http.MethodPost,
				Body:   []byte(`{"raw":1}`),
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				assert.Equal(t, `{"raw":1}`, string(body))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			},
		},
		{
			name: "io.Reader body 默认 text/plain",
			requestParam: &RequestParam{
				Method: http.MethodPost,
				Body:   strings.NewReader("plain"),
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				assert.Equal(t, "plain", string(body))
				assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
			},
		},
		{
			name: "自定义 header 优先",
			requestParam: &RequestParam{
				Method: http.MethodPost,
				Header: map[string]string{"Content-Type": "image/png", "x-goog-api-key": "k"},
				Body:   strings.NewReader("png"),
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
				assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))
			},
		},
		{
			name:         "非 2xx 状态码",
			requestParam: &RequestParam{Method: http.MethodGet},
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte("permission denied"))
			},
			wantErrMsg: "HTTP request failed with status 403: permission denied",
		},
		{
			name:         "请求超时",
			requestParam: &RequestParam{Method: http.MethodGet, Timeout: 50 * time.Millisecond},
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
			},
			wantErrMsg: "context deadline exceeded",
		},
		{
			name:       "请求参数为nil",
			wantErrMsg: "request param is nil",
		},
		{
			name:         "无效的URL",
			requestParam: &RequestParam{Method: http.MethodGet, RequestURI: "://invalid-url"},
			wantErrMsg:   "missing protocol scheme",
		},
		{
			name:         "JSON序列化失败",
			requestParam: &RequestParam{Method: http.MethodPost, Body: make(chan int)},
			wantErrMsg:   "json: unsupported type: chan int",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := tt.handler
			if handler == nil {
				handler = func(w http.ResponseWriter, r *http.Request) {}
			}
			server := httptest.NewServer(handler)
			defer server.Close()

			if tt.requestParam != nil && tt.requestParam.RequestURI == "" {
				tt.requestParam.RequestURI = server.URL
			}

			err := NewHTTPClient().DoHTTPRequest(context.Background(), tt.requestParam)
			if tt.wantErrMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestHTTPClient_DoHTTPRequest_StatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota"}}`))
	}))
	defer server.Close()

	err := NewHTTPClient().DoHTTPRequest(context.Background(), &RequestParam{
		Method:     http.MethodPost,
		RequestURI: server.URL,
		Body:       map[string]string{},
		Response:   &map[string]any{},
	})

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Contains(t, se.Body, "quota")
}

func TestHTTPClient_DoHTTPRequest_ContextCancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := NewHTTPClient().DoHTTPRequest(ctx, &RequestParam{
		Method:     http.MethodGet,
		RequestURI: server.URL,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context canceled")
}

func TestHTTPClient_DoHTTPRequest_DecodeResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			_, _ = w.Write([]byte(`{"candidates":[{"finishReason":"STOP"}]}`))
		}
	}))
	defer server.Close()

	type candidate struct {
		FinishReason string `json:"finishReason"`
	}
	var resp struct {
		Candidates []candidate `json:"candidates"`
	}

	err := NewHTTPClient().DoHTTPRequest(context.Background(), &RequestParam{
		Method:     http.MethodGet,
		RequestURI: server.URL,
		Response:   &resp,
	})
	require.NoError(t, err)
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, "STOP", resp.Candidates[0].FinishReason)

	// HEAD 没有响应体，不做解码
	err = NewHTTPClient().DoHTTPRequest(context.Background(), &RequestParam{
		Method:     http.MethodHead,
		RequestURI: server.URL,
		Response:   &resp,
	})
	assert.NoError(t, err)
}

func TestHTTPClient_DoHTTPRequest_InvalidJSONResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	err := NewHTTPClient().DoHTTPRequest(context.Background(), &RequestParam{
		Method:     http.MethodGet,
		RequestURI: server.URL,
		Response:   &map[string]any{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal response")
}
