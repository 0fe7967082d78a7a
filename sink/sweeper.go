package sink

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper 定期删除 Dir 中超过保留期的导出文件
type Sweeper struct {
	Dir       string
	Retention time.Duration

	cron *cron.Cron
	now  func() time.Time
}

func NewSweeper(dir string, retention time.Duration) *Sweeper {
	return &Sweeper{
		Dir:       dir,
		Retention: retention,
		now:       time.Now,
	}
}

// Start 按 cron 表达式（支持 @every 1h）定期清理
func (s *Sweeper) Start(schedule string) error {
	if s.Retention <= 0 {
		slog.Info("export retention disabled, sweeper not started")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := s.Sweep(); err != nil {
			slog.Error("sweep exports failed", "dir", s.Dir, "error", err)
		}
	}); err != nil {
		return fmt.Errorf("add sweep job: %w", err)
	}
	c.Start()
	s.cron = c
	return nil
}

func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep 删除过期的导出文件，返回删除数量。
// 只处理 remove-bg-pro-<ksuid>.png，时间取自 ksuid。
func (s *Sweeper) Sweep() (int, error) {
	entries, err := os.ReadDir(s.Dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read export dir: %w", err)
	}

	deadline := s.now().Add(-s.Retention)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		created, ok := exportTime(e.Name())
		if !ok || !created.Before(deadline) {
			continue
		}
		if err := os.Remove(filepath.Join(s.Dir, e.Name())); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove export: %w", err)
		}
		removed++
	}

	if removed > 0 {
		slog.Info("expired exports removed", "dir", s.Dir, "count", removed)
	}
	return removed, nil
}
