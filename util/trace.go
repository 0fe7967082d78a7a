package util

import (
	"log/slog"
	"time"
)

// Trace 记录代码块耗时，用法: defer util.Trace("key")()
func Trace(name string) func() {
	start := time.Now()
	return func() {
		slog.Debug("trace", "name", name, "cost", time.Since(start))
	}
}
