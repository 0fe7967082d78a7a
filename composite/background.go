package composite

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/chaos-io/removebg/raster"
	"github.com/lucasb-eyer/go-colorful"
)

// MaxBlurRadius 背景照片模糊半径上限（像素）
const MaxBlurRadius = 40

// Background 背景层：Transparent、Solid 或 Photo
type Background interface {
	isBackground()
}

// Transparent 不填充
type Transparent struct{}

// Solid 整张画布填充不透明纯色
type Solid struct {
	Color color.RGBA
}

// Photo 照片背景，cover 方式铺满画布后再做高斯模糊
type Photo struct {
	Source     raster.Image
	BlurRadius int
}

func (Transparent) isBackground() {}
func (Solid) isBackground()       {}
func (Photo) isBackground()       {}

// PresetColors 预置的纯色背景
var PresetColors = []string{
	"#f44336", "#e91e63", "#9c27b0",
	"#673ab7", "#3f51b5", "#2196f3",
	"#03a9f4", "#00bcd4", "#009688",
	"#4caf50", "#8bc34a", "#cddc39",
	"#ffeb3b", "#ffc107", "#ff9800",
	"#ff5722", "#795548", "#9e9e9e",
	"#607d8b", "#000000", "#ffffff",
}

// DefaultColor 纯色背景的默认值
const DefaultColor = "#ffffff"

// ParseColor 解析 #rrggbb / #rgb
func ParseColor(hex string) (color.RGBA, error) {
	hex = strings.TrimSpace(hex)
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("parse color %q: %w", hex, err)
	}
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// SolidHex 由十六进制颜色构造纯色背景
func SolidHex(hex string) (Solid, error) {
	c, err := ParseColor(hex)
	if err != nil {
		return Solid{}, err
	}
	return Solid{Color: c}, nil
}

func clampBlur(r int) int {
	return max(0, min(MaxBlurRadius, r))
}
