// Package pipeline 串起隔离、抠像、合成三个阶段
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/chaos-io/removebg/composite"
	"github.com/chaos-io/removebg/isolate"
	"github.com/chaos-io/removebg/keying"
	"github.com/chaos-io/removebg/raster"
	"github.com/chaos-io/removebg/util"
)

const (
	msgUnauthorized = "API permission denied. Make sure the API key is valid."
	msgFailed       = "Failed to process the image. Please try again."
)

// DefaultMinTransparentShare 完全透明像素至少占 1% 才认为输入已经抠过图
const DefaultMinTransparentShare = 0.01

var ErrEmptyImage = errors.New("empty image")

type Pipeline struct {
	Isolator     isolate.Isolator
	Keyer        *keying.Keyer
	Shadow       composite.Shadow
	MaxInputSize int
	// MinTransparentShare <= 0 时总是调用隔离服务
	MinTransparentShare float64
}

func New(iso isolate.Isolator) *Pipeline {
	if iso == nil {
		iso = isolate.NewPassthrough()
	}
	return &Pipeline{
		Isolator:            iso,
		Keyer:               keying.NewKeyer(),
		Shadow:              composite.DefaultShadow(),
		MaxInputSize:        DefaultMaxInputSize,
		MinTransparentShare: DefaultMinTransparentShare,
	}
}

// RemoveBackground 原图 → 品红底 → 抠图。
// 输入中完全透明的像素达到 MinTransparentShare 时直接作为抠图结果，不再调用隔离服务。
func (p *Pipeline) RemoveBackground(ctx context.Context, img image.Image) (raster.Image, error) {
	defer util.Trace("remove background")()

	src := raster.FromImage(img)
	if src.Empty() {
		return raster.Image{}, ErrEmptyImage
	}

	if p.alreadyCut(src) {
		slog.Info("input already has alpha, skip isolation", "width", src.Width, "height", src.Height)
		return src, nil
	}

	scaled := resizeWithinMax(src.NRGBA(), p.MaxInputSize)
	keyed, err := p.Isolator.Isolate(ctx, scaled)
	if err != nil {
		slog.Error("isolate subject failed", "error", err)
		return raster.Image{}, fmt.Errorf("isolate: %w", err)
	}

	cut := p.keyer().Key(raster.FromImage(keyed))
	if cut.Empty() {
		return raster.Image{}, fmt.Errorf("isolate: %w", ErrEmptyImage)
	}

	slog.Info("background removed",
		"src", fmt.Sprintf("%dx%d", src.Width, src.Height),
		"out", fmt.Sprintf("%dx%d", cut.Width, cut.Height))
	return cut, nil
}

// Key 只做抠像，输入应当已经是品红底
func (p *Pipeline) Key(img raster.Image) raster.Image {
	defer util.Trace("key")()
	return p.keyer().Key(img)
}

// Export 把抠图合成到背景上
func (p *Pipeline) Export(subject raster.Image, bg composite.Background) raster.Image {
	defer util.Trace("composite")()

	if bg == nil {
		bg = composite.Transparent{}
	}
	return composite.Composite(subject, bg, p.Shadow)
}

// Run RemoveBackground + Export
func (p *Pipeline) Run(ctx context.Context, img image.Image, bg composite.Background) (raster.Image, error) {
	cut, err := p.RemoveBackground(ctx, img)
	if err != nil {
		return raster.Image{}, err
	}
	return p.Export(cut, bg), nil
}

func (p *Pipeline) alreadyCut(src raster.Image) bool {
	return p.MinTransparentShare > 0 && src.TransparentShare() >= p.MinTransparentShare
}

func (p *Pipeline) keyer() *keying.Keyer {
	if p.Keyer == nil {
		return keying.NewKeyer()
	}
	return p.Keyer
}

// UserMessage 把错误转换成展示给用户的提示
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, isolate.ErrUnauthorized) {
		return msgUnauthorized
	}
	return msgFailed
}
