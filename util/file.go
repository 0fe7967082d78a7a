package util

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/webp"
)

// MaxImageBytes 单张输入图片的大小上限
const MaxImageBytes = 32 << 20

// IsImageContentType 只接受 image/* 类型
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// DecodeImage 解码 png / jpeg / gif / webp，返回格式名
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(io.LimitReader(r, MaxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// DownloadImage 下载图片
func DownloadImage(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image: unexpected status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !IsImageContentType(ct) {
		return nil, fmt.Errorf("download image: unsupported content type %q", ct)
	}

	imgData, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes))
	if err != nil {
		return nil, err
	}

	img, _, err := DecodeImage(bytes.NewReader(imgData))
	return img, err
}

// OpenImage 打开本地图片
func OpenImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()

	img, _, err := DecodeImage(file)
	return img, err
}

// LoadImage 按前缀区分 URL 和本地路径
func LoadImage(ctx context.Context, src string) (image.Image, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return DownloadImage(ctx, src)
	}
	return OpenImage(src)
}

// EncodePNG PNG 保留 alpha 通道
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// SavePNG 写入 PNG 文件，目录不存在时自动创建
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	data, err := EncodePNG(img)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
