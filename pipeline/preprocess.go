package pipeline

import (
	"image"

	"github.com/nfnt/resize"
)

// DefaultMaxInputSize 上传给隔离服务前最长边的上限
const DefaultMaxInputSize = 1024

// resizeWithinMax 缩放（最长边 <= maxSize），maxSize <= 0 时不缩放
func resizeWithinMax(img image.Image, maxSize int) image.Image {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	longest := max(w, h)

	if maxSize <= 0 || longest <= maxSize {
		return img
	}

	scale := float64(maxSize) / float64(longest)
	newW := max(1, int(float64(w)*scale))
	newH := max(1, int(float64(h)*scale))

	return resize.Resize(uint(newW), uint(newH), img, resize.Lanczos3)
}
