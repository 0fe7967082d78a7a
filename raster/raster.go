package raster

import (
	"image"
	"image/draw"
)

// Image 是一块紧凑排列的 RGBA 像素缓冲（非预乘 alpha）
// 不变量：len(Pix) == Width*Height*4
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

// New 分配一块全透明的图像
func New(width, height int) Image {
	if width <= 0 || height <= 0 {
		return Image{}
	}
	return Image{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*4),
	}
}

// Valid 像素长度与尺寸一致，且面积大于 0
func (m Image) Valid() bool {
	return m.Width > 0 && m.Height > 0 && len(m.Pix) == m.Width*m.Height*4
}

// Empty 零面积图像
func (m Image) Empty() bool {
	return m.Width <= 0 || m.Height <= 0
}

func (m Image) Clone() Image {
	pix := make([]byte, len(m.Pix))
	copy(pix, m.Pix)
	return Image{Width: m.Width, Height: m.Height, Pix: pix}
}

func (m Image) offset(x, y int) int {
	return (y*m.Width + x) * 4
}

// At 返回 (x, y) 处的 RGBA 四个分量
func (m Image) At(x, y int) (r, g, b, a uint8) {
	i := m.offset(x, y)
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3]
}

func (m Image) Set(x, y int, r, g, b, a uint8) {
	i := m.offset(x, y)
	m.Pix[i], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3] = r, g, b, a
}

// NRGBA 共享底层像素，调用方不得修改返回值
func (m Image) NRGBA() *image.NRGBA {
	if m.Empty() {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}
	return &image.NRGBA{
		Pix:    m.Pix,
		Stride: m.Width * 4,
		Rect:   image.Rect(0, 0, m.Width, m.Height),
	}
}

// FromImage 把任意 image.Image 转成紧凑的非预乘 RGBA，原点移到 (0,0)
func FromImage(img image.Image) Image {
	if img == nil {
		return Image{}
	}
	b := img.Bounds()
	if b.Empty() {
		return Image{}
	}

	out := New(b.Dx(), b.Dy())
	if src, ok := img.(*image.NRGBA); ok {
		rowLen := b.Dx() * 4
		for y := 0; y < b.Dy(); y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Pix[y*rowLen:(y+1)*rowLen], src.Pix[si:si+rowLen])
		}
		return out
	}

	dst := out.NRGBA()
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return out
}

// TransparentShare alpha 为 0 的像素占比，空图返回 0
func (m Image) TransparentShare() float64 {
	total := len(m.Pix) / 4
	if total == 0 {
		return 0
	}
	n := 0
	for i := 3; i < len(m.Pix); i += 4 {
		if m.Pix[i] == 0 {
			n++
		}
	}
	return float64(n) / float64(total)
}

// MirrorHorizontal 左右镜像（摄像头预览是镜像的，拍照时保持一致）
func MirrorHorizontal(m Image) Image {
	if !m.Valid() {
		return m.Clone()
	}
	out := New(m.Width, m.Height)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			si := m.offset(x, y)
			di := out.offset(m.Width-1-x, y)
			copy(out.Pix[di:di+4], m.Pix[si:si+4])
		}
	}
	return out
}
