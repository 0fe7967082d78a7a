// Package sink 保存导出的 PNG
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chaos-io/removebg/raster"
	"github.com/chaos-io/removebg/util"
	"github.com/segmentio/ksuid"
)

const (
	namePrefix = "remove-bg-pro-"
	nameSuffix = ".png"
)

// Result 导出结果的名称与位置（本地路径或 blob URL）
type Result struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Bytes    int    `json:"bytes"`
}

type Sink interface {
	Save(ctx context.Context, img raster.Image) (Result, error)
}

// ExportName remove-bg-pro-<ksuid>.png，ksuid 自带生成时间
func ExportName() string {
	return namePrefix + ksuid.New().String() + nameSuffix
}

// exportTime 从导出文件名中取出生成时间
func exportTime(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, namePrefix) || !strings.HasSuffix(name, nameSuffix) {
		return time.Time{}, false
	}
	id, err := ksuid.Parse(strings.TrimSuffix(strings.TrimPrefix(name, namePrefix), nameSuffix))
	if err != nil {
		return time.Time{}, false
	}
	return id.Time(), true
}

type FileSink struct {
	Dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir}
}

func (s *FileSink) Save(ctx context.Context, img raster.Image) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if !img.Valid() {
		return Result{}, fmt.Errorf("save export: invalid image %dx%d", img.Width, img.Height)
	}

	data, err := util.EncodePNG(img.NRGBA())
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(s.Dir, os.ModePerm); err != nil {
		return Result{}, fmt.Errorf("create export dir: %w", err)
	}

	name := ExportName()
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Result{}, fmt.Errorf("write export: %w", err)
	}

	return Result{Name: name, Location: path, Bytes: len(data)}, nil
}
