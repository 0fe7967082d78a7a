package isolate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chaos-io/removebg/util"
	nhttp "github.com/chaos-io/removebg/util/http"
	"github.com/chaos-io/removebg/util/http/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func magentaPNG(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, B: 255, A: 255})
		}
	}
	data, err := util.EncodePNG(img)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(data)
}

func source() image.Image {
	return image.NewNRGBA(image.Rect(0, 0, 2, 2))
}

func TestGemini_Isolate_Server(t *testing.T) {
	encoded := magentaPNG(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/"+DefaultModel+":generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		require.Len(t, req.Contents[0].Parts, 2)
		assert.Equal(t, "image/png", req.Contents[0].Parts[0].InlineData.MimeType)
		assert.Equal(t, Prompt, req.Contents[0].Parts[1].Text)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[
			{"text":"here you go"},
			{"inlineData":{"mimeType":"image/png","data":"` + encoded + `"}}
		]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	g := NewGemini("test-key", WithEndpoint(server.URL+"/"))
	img, err := g.Isolate(context.Background(), source())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())

	r, gg, b, _ := img.At(1, 1).RGBA()
	assert.Equal(t, []uint32{0xffff, 0, 0xffff}, []uint32{r, gg, b})
}

func TestGemini_Isolate_Forbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"status":"PERMISSION_DENIED"}}`))
	}))
	defer server.Close()

	_, err := NewGemini("bad", WithEndpoint(server.URL)).Isolate(context.Background(), source())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrIsolationFailed)
}

func TestGemini_Isolate_MissingKey(t *testing.T) {
	_, err := NewGemini("").Isolate(context.Background(), source())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGemini_Isolate_Mock(t *testing.T) {
	tests := []struct {
		name     string
		respond  func(p *nhttp.RequestParam) error
		wantErr  error
		wantText string
	}{
		{
			name: "只返回文本",
			respond: func(p *nhttp.RequestParam) error {
				return json.Unmarshal([]byte(`{"candidates":[{"content":{"parts":[{"text":"I can't edit people."}]}}]}`), p.Response)
			},
			wantErr:  ErrIsolationFailed,
			wantText: "I can't edit people.",
		},
		{
			name: "没有候选",
			respond: func(p *nhttp.RequestParam) error {
				return json.Unmarshal([]byte(`{"candidates":[]}`), p.Response)
			},
			wantErr: ErrNoImage,
		},
		{
			name: "被安全策略拦截",
			respond: func(p *nhttp.RequestParam) error {
				return json.Unmarshal([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`), p.Response)
			},
			wantErr:  ErrIsolationFailed,
			wantText: "SAFETY",
		},
		{
			name: "错误信息带 403",
			respond: func(p *nhttp.RequestParam) error {
				return errors.New("upstream said 403 PERMISSION_DENIED")
			},
			wantErr: ErrUnauthorized,
		},
		{
			name: "服务端 500",
			respond: func(p *nhttp.RequestParam) error {
				return &nhttp.StatusError{StatusCode: 500, Body: "internal"}
			},
			wantErr:  ErrIsolationFailed,
			wantText: "internal",
		},
		{
			name: "图片数据无法解码",
			respond: func(p *nhttp.RequestParam) error {
				return json.Unmarshal([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"bm90IGFuIGltYWdl"}}]}}]}`), p.Response)
			},
			wantErr: ErrIsolationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			cli := mocks.NewMockIClient(ctrl)
			cli.EXPECT().
				DoHTTPRequest(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, p *nhttp.RequestParam) error {
					return tt.respond(p)
				})

			g := NewGemini("k", WithClient(cli), WithModel("custom-model"))
			_, err := g.Isolate(context.Background(), source())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantText != "" {
				assert.Contains(t, err.Error(), tt.wantText)
			}
		})
	}
}

func TestGemini_Isolate_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := NewGemini("k", WithEndpoint(server.URL), WithTimeout(50*time.Millisecond)).Isolate(context.Background(), source())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantIs  []error
		wantNot []error
	}{
		{name: "超时原样返回", err: fmt.Errorf("post: %w", context.DeadlineExceeded), wantIs: []error{context.DeadlineExceeded}, wantNot: []error{ErrIsolationFailed, ErrUnauthorized}},
		{name: "取消原样返回", err: context.Canceled, wantIs: []error{context.Canceled}, wantNot: []error{ErrIsolationFailed}},
		{name: "401 保留原始错误", err: &nhttp.StatusError{StatusCode: 401, Body: "no"}, wantIs: []error{ErrUnauthorized}, wantNot: []error{ErrIsolationFailed}},
		{name: "其他错误保留原始错误", err: fmt.Errorf("dial: %w", io.ErrUnexpectedEOF), wantIs: []error{ErrIsolationFailed, io.ErrUnexpectedEOF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			for _, want := range tt.wantIs {
				assert.ErrorIs(t, got, want)
			}
			for _, not := range tt.wantNot {
				assert.NotErrorIs(t, got, not)
			}
		})
	}

	var se *nhttp.StatusError
	require.ErrorAs(t, classify(&nhttp.StatusError{StatusCode: 403}), &se)
	assert.Equal(t, 403, se.StatusCode)
}

func TestGemini_Options(t *testing.T) {
	g := NewGemini("k", WithModel(""), WithEndpoint("http://x/"), WithTimeout(0))
	assert.Equal(t, DefaultModel, g.model)
	assert.Equal(t, "http://x", g.endpoint)
	assert.Equal(t, defaultTimeout, g.timeout)
}

func TestPassthrough(t *testing.T) {
	img := source()
	got, err := NewPassthrough().Isolate(context.Background(), img)
	require.NoError(t, err)
	assert.Same(t, img, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewPassthrough().Isolate(ctx, img)
	assert.ErrorIs(t, err, context.Canceled)
}
