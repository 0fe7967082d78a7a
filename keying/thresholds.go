package keying

// Thresholds 抠像的全部阈值，取值区间均为 0..255
type Thresholds struct {
	// 参考色判定为品红：R、B 大于 MagentaMinRB 且 G 小于 MagentaMaxG
	MagentaMinRB int
	MagentaMaxG  int

	// 硬切：r、b 大于 HardCutMinRB，g 小于 HardCutMaxG，且 |r-b| < HardCutBalance
	HardCutMinRB   int
	HardCutMaxG    int
	HardCutBalance int

	// 去溢色：r、b 被压到 g + DespillOffset
	DespillOffset int

	// 非品红背景时，每个通道与参考色的容差
	FallbackTolerance int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MagentaMinRB:      180,
		MagentaMaxG:       80,
		HardCutMinRB:      120,
		HardCutMaxG:       100,
		HardCutBalance:    60,
		DespillOffset:     20,
		FallbackTolerance: 60,
	}
}

// isMagenta 判断参考色是否为品红
func (t Thresholds) isMagenta(r, g, b int) bool {
	return r > t.MagentaMinRB && g < t.MagentaMaxG && b > t.MagentaMinRB
}
