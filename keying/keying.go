package keying

import (
	"runtime"

	"github.com/chaos-io/removebg/raster"
	"golang.org/x/sync/errgroup"
)

// Keyer 把纯色（理想情况下是品红 #FF00FF）背景上的主体转成带 alpha 的抠图
type Keyer struct {
	Thresholds Thresholds
	Detector   Detector
	// Workers 并行处理的行条带数，<= 0 时使用 GOMAXPROCS
	Workers int
}

func NewKeyer() *Keyer {
	return &Keyer{
		Thresholds: DefaultThresholds(),
		Detector:   CornerDetector{},
	}
}

// Key 使用默认配置抠像
func Key(img raster.Image) raster.Image {
	return NewKeyer().Key(img)
}

// Key 永不失败：零尺寸或像素长度不合法时原样返回输入的副本
func (k *Keyer) Key(img raster.Image) raster.Image {
	if !img.Valid() {
		return img.Clone()
	}

	detector := k.Detector
	if detector == nil {
		detector = CornerDetector{}
	}
	profile := detector.Detect(img, k.Thresholds)

	out := img.Clone()
	apply := k.fallbackPixel(profile)
	if profile.Magenta {
		apply = k.magentaPixel
	}

	var g errgroup.Group
	for _, rows := range splitRows(img.Height, k.workers()) {
		g.Go(func() error {
			start := rows[0] * img.Width * 4
			end := rows[1] * img.Width * 4
			for i := start; i < end; i += 4 {
				apply(out.Pix[i : i+4 : i+4])
			}
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// magentaPixel 先硬切，保留下来的可见像素再去品红溢色。
// 去溢色用的是原始 r/g/b，不会回头再判断硬切条件。
// 已经全透明的像素不做去溢色，重复执行时 RGB 保持不变。
func (k *Keyer) magentaPixel(px []byte) {
	t := k.Thresholds
	r, g, b := int(px[0]), int(px[1]), int(px[2])

	if r > t.HardCutMinRB && g < t.HardCutMaxG && b > t.HardCutMinRB && abs(r-b) < t.HardCutBalance {
		px[3] = 0
		return
	}
	if px[3] == 0 {
		return
	}

	// 肤色通常 r > g 但 b < g，只有 r、b 同时高于 g 才是品红溢色
	if r > g && b > g {
		limit := g + t.DespillOffset
		if r > limit && b > limit {
			px[0] = uint8(limit)
			px[2] = uint8(limit)
		}
	}
}

func (k *Keyer) fallbackPixel(p Profile) func(px []byte) {
	tol := k.Thresholds.FallbackTolerance
	refR, refG, refB := int(p.Reference.R), int(p.Reference.G), int(p.Reference.B)

	return func(px []byte) {
		if abs(int(px[0])-refR) < tol && abs(int(px[1])-refG) < tol && abs(int(px[2])-refB) < tol {
			px[3] = 0
		}
	}
}

func (k *Keyer) workers() int {
	if k.Workers > 0 {
		return k.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// splitRows 把 [0, h) 切成最多 workers 段
func splitRows(h, workers int) [][2]int {
	if workers < 1 {
		workers = 1
	}
	if workers > h {
		workers = h
	}
	rows := make([][2]int, 0, workers)
	step := h / workers
	start := 0
	for i := 0; i < workers; i++ {
		end := start + step
		if i == workers-1 {
			end = h
		}
		rows = append(rows, [2]int{start, end})
		start = end
	}
	return rows
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
