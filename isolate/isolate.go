// Package isolate 调用外部图像生成服务，把主体放到纯品红背景上
package isolate

import (
	"context"
	"errors"
	"image"
)

// Prompt 让模型把主体放到纯品红 #FF00FF 背景上，供 keying 抠像
const Prompt = "Extract the main subject from this image. Place the subject on a solid PURE MAGENTA background (Hex Color #FF00FF). Ensure hard edges if possible. Do NOT use a checkerboard pattern. Do NOT use white."

var (
	// ErrUnauthorized 认证失败或无权限（401/403）
	ErrUnauthorized = errors.New("isolation permission denied")
	// ErrIsolationFailed 其他失败，包括只返回文本的响应
	ErrIsolationFailed = errors.New("isolation failed")
	// ErrNoImage 响应中没有图片
	ErrNoImage = errors.New("no image in response")
)

type Isolator interface {
	Isolate(ctx context.Context, img image.Image) (image.Image, error)
}

// Passthrough 不调用任何服务，原样返回。输入已经是品红底时使用
type Passthrough struct{}

func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

func (p *Passthrough) Isolate(ctx context.Context, img image.Image) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return img, nil
}
