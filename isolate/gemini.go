package isolate

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chaos-io/removebg/util"
	nhttp "github.com/chaos-io/removebg/util/http"
)

const (
	DefaultModel    = "gemini-2.5-flash-image"
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout  = 2 * time.Minute
)

type Gemini struct {
	cli      nhttp.IClient
	apiKey   string
	model    string
	endpoint string
	timeout  time.Duration
}

type Option func(*Gemini)

func WithModel(model string) Option {
	return func(g *Gemini) {
		if model != "" {
			g.model = model
		}
	}
}

func WithEndpoint(endpoint string) Option {
	return func(g *Gemini) {
		if endpoint != "" {
			g.endpoint = strings.TrimRight(endpoint, "/")
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(g *Gemini) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithClient(cli nhttp.IClient) Option {
	return func(g *Gemini) {
		if cli != nil {
			g.cli = cli
		}
	}
}

func NewGemini(apiKey string, opts ...Option) *Gemini {
	g := &Gemini{
		cli:      nhttp.NewHTTPClient(),
		apiKey:   apiKey,
		model:    DefaultModel,
		endpoint: DefaultEndpoint,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

/*
	curl "$ENDPOINT/models/gemini-2.5-flash-image:generateContent" \
	  -H "x-goog-api-key: $API_KEY" \
	  -H "Content-Type: application/json" \
	  -d '{"contents":[{"parts":[{"inlineData":{"mimeType":"image/png","data":"..."}},{"text":"..."}]}]}'
*/
func (g *Gemini) Isolate(ctx context.Context, img image.Image) (image.Image, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("%w: missing api key", ErrUnauthorized)
	}

	data, err := util.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	reqParam := &nhttp.RequestParam{
		RequestURI: fmt.Sprintf("%s/models/%s:generateContent", g.endpoint, g.model),
		Method:     http.MethodPost,
		Header: map[string]string{
			"Content-Type":   "application/json",
			"x-goog-api-key": g.apiKey,
		},
		Body: generateRequest{Contents: []content{{
			Parts: []part{
				{InlineData: &blob{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(data)}},
				{Text: Prompt},
			},
		}}},
		Response: &generateResponse{},
		Timeout:  g.timeout,
	}

	defer util.Trace("gemini isolate")()
	if err := g.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, classify(err)
	}

	resp, _ := reqParam.Response.(*generateResponse)
	return decodeResponse(resp)
}

// classify 401/403 或错误信息中带 403 的视为无权限，其余都是普通失败。
// 超时与取消原样返回，由调用方决定如何响应。
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var se *nhttp.StatusError
	if errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden) {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if strings.Contains(err.Error(), "403") {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return fmt.Errorf("%w: %w", ErrIsolationFailed, err)
}

// decodeResponse 取第一个候选中的第一张图片；没有图片时把模型返回的文本原样带出
func decodeResponse(resp *generateResponse) (image.Image, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("%w: blocked: %s", ErrIsolationFailed, resp.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("%w: %w", ErrIsolationFailed, ErrNoImage)
	}

	var texts []string
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData != nil && p.InlineData.Data != "" {
			raw, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("%w: decode inline data: %v", ErrIsolationFailed, err)
			}
			img, format, err := util.DecodeImage(bytes.NewReader(raw))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrIsolationFailed, err)
			}
			slog.Debug("gemini returned image", "format", format, "bounds", img.Bounds())
			return img, nil
		}
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}

	if len(texts) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrIsolationFailed, strings.Join(texts, "\n"))
	}
	return nil, fmt.Errorf("%w: %w", ErrIsolationFailed, ErrNoImage)
}
