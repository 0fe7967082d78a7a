package keying

import (
	"image"
	"image/color"

	"github.com/cenkalti/dominantcolor"
	"github.com/chaos-io/removebg/raster"
)

// Profile 一次抠像调用内有效的背景判定结果
type Profile struct {
	Magenta   bool
	Reference color.RGBA
}

// Detector 从图像推断背景键色
type Detector interface {
	Detect(img raster.Image, t Thresholds) Profile
}

// CornerDetector 只采样 (0,0) 一个像素。
// 主体恰好占据左上角时会误判。
type CornerDetector struct{}

func (CornerDetector) Detect(img raster.Image, t Thresholds) Profile {
	r, g, b, _ := img.At(0, 0)
	return newProfile(color.RGBA{R: r, G: g, B: b, A: 255}, t)
}

// BorderDetector 取图像四周边框条带的主色作为参考色
type BorderDetector struct {
	// Width 边框条带宽度（像素），<= 0 时使用 4
	Width int
}

func (d BorderDetector) Detect(img raster.Image, t Thresholds) Profile {
	w := d.Width
	if w <= 0 {
		w = 4
	}
	w = min(w, img.Width, img.Height)

	strip := borderStrip(img, w)
	ref := dominantcolor.Find(strip)
	ref.A = 255
	return newProfile(ref, t)
}

func newProfile(ref color.RGBA, t Thresholds) Profile {
	return Profile{
		Magenta:   t.isMagenta(int(ref.R), int(ref.G), int(ref.B)),
		Reference: ref,
	}
}

// borderStrip 把上下左右四条边拼成一张 (2*W + 2*H) x w 的条带图
func borderStrip(img raster.Image, w int) *image.NRGBA {
	stripLen := 2*img.Width + 2*img.Height
	strip := image.NewNRGBA(image.Rect(0, 0, stripLen, w))

	put := func(sx, sy, x, y int) {
		r, g, b, _ := img.At(x, y)
		strip.SetNRGBA(sx, sy, color.NRGBA{R: r, G: g, B: b, A: 255})
	}

	for k := 0; k < w; k++ {
		off := 0
		for x := 0; x < img.Width; x++ {
			put(off+x, k, x, k)
			put(off+img.Width+x, k, x, img.Height-1-k)
		}
		off = 2 * img.Width
		for y := 0; y < img.Height; y++ {
			put(off+y, k, k, y)
			put(off+img.Height+y, k, img.Width-1-k, y)
		}
	}
	return strip
}
