package composite

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/chaos-io/removebg/raster"
	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// Shadow 投影参数，Blur 与 canvas 的 shadowBlur 含义相同（高斯 sigma = Blur/2）
type Shadow struct {
	Color   color.RGBA
	Opacity float64
	Blur    float64
	OffsetX int
	OffsetY int
}

// DefaultShadow rgba(0,0,0,0.3)，模糊 20，向下偏移 5
func DefaultShadow() Shadow {
	return Shadow{
		Color:   color.RGBA{A: 255},
		Opacity: 0.3,
		Blur:    20,
		OffsetX: 0,
		OffsetY: 5,
	}
}

func (s Shadow) sigma() float64 {
	return s.Blur / 2
}

// Composite 画布尺寸等于主体尺寸，自下而上：背景、投影、主体。
// 在 16 位画布上叠加，低 alpha 的边缘像素转回 8 位后颜色基本不变。
// 尺寸不合法时返回零尺寸图像。
func Composite(subject raster.Image, bg Background, shadow Shadow) raster.Image {
	if !subject.Valid() {
		return raster.Image{}
	}

	bounds := image.Rect(0, 0, subject.Width, subject.Height)
	canvas := image.NewRGBA64(bounds)

	drawBackground(canvas, bg)

	fg := subject.NRGBA()
	if layer, origin := shadowLayer(fg, shadow); layer != nil {
		draw.Draw(canvas, bounds, layer, origin, draw.Over)
	}
	draw.Draw(canvas, bounds, fg, image.Point{}, draw.Over)

	return raster.FromImage(canvas)
}

func drawBackground(canvas draw.Image, bg Background) {
	bounds := canvas.Bounds()

	switch b := bg.(type) {
	case Solid:
		c := b.Color
		c.A = 255
		draw.Draw(canvas, bounds, image.NewUniform(c), image.Point{}, draw.Src)
	case *Solid:
		if b != nil {
			drawBackground(canvas, *b)
		}
	case Photo:
		drawPhoto(canvas, b)
	case *Photo:
		if b != nil {
			drawPhoto(canvas, *b)
		}
	}
}

// drawPhoto 零面积的照片按透明背景处理
func drawPhoto(canvas draw.Image, p Photo) {
	if !p.Source.Valid() {
		return
	}
	bounds := canvas.Bounds()
	cover := CoverRect(p.Source.Width, p.Source.Height, bounds.Dx(), bounds.Dy())

	dst := image.NewNRGBA(image.Rect(0, 0, cover.Dx(), cover.Dy()))
	src := p.Source.NRGBA()
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	var scaled image.Image = dst
	if r := clampBlur(p.BlurRadius); r > 0 {
		scaled = imaging.Blur(dst, float64(r))
	}

	draw.Draw(canvas, bounds, scaled, image.Pt(-cover.Min.X, -cover.Min.Y), draw.Over)
}

// CoverRect 保持宽高比把 srcW x srcH 缩放到恰好盖满 dstW x dstH，居中，返回其在画布坐标系中的位置。
// 源图更宽时按画布高度缩放、水平居中；否则按画布宽度缩放、垂直居中。
func CoverRect(srcW, srcH, dstW, dstH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return image.Rectangle{}
	}
	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := float64(dstW) / float64(dstH)

	var w, h int
	if srcAspect > dstAspect {
		h = dstH
		w = max(dstW, int(math.Round(float64(dstH)*srcAspect)))
	} else {
		w = dstW
		h = max(dstH, int(math.Round(float64(dstW)/srcAspect)))
	}

	x := (dstW - w) / 2
	y := (dstH - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

// shadowLayer 按主体 alpha 生成投影层，返回投影层及其与画布原点对齐的偏移。
// 投影只出现在主体非透明区域平移、模糊后的范围内。
func shadowLayer(fg *image.NRGBA, s Shadow) (*image.NRGBA, image.Point) {
	opacity := s.Opacity * float64(s.Color.A) / 255
	if opacity <= 0 {
		return nil, image.Point{}
	}

	w, h := fg.Rect.Dx(), fg.Rect.Dy()
	pad := int(math.Ceil(s.sigma()*3)) + max(abs(s.OffsetX), abs(s.OffsetY))

	mask := image.NewNRGBA(image.Rect(0, 0, w+2*pad, h+2*pad))
	visible := false
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := fg.Pix[y*fg.Stride+x*4+3]
			if a == 0 {
				continue
			}
			visible = true
			i := mask.PixOffset(x+pad+s.OffsetX, y+pad+s.OffsetY)
			mask.Pix[i] = s.Color.R
			mask.Pix[i+1] = s.Color.G
			mask.Pix[i+2] = s.Color.B
			mask.Pix[i+3] = a
		}
	}
	if !visible {
		return nil, image.Point{}
	}

	layer := mask
	if s.sigma() > 0 {
		layer = imaging.Blur(mask, s.sigma())
	}

	for i := 0; i < len(layer.Pix); i += 4 {
		a := layer.Pix[i+3]
		if a == 0 {
			continue
		}
		layer.Pix[i] = s.Color.R
		layer.Pix[i+1] = s.Color.G
		layer.Pix[i+2] = s.Color.B
		layer.Pix[i+3] = uint8(math.Round(float64(a) * opacity))
	}

	return layer, image.Pt(pad, pad)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
