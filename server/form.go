package server

import (
	"errors"
	"image"
	"net/http"
	"strconv"
	"strings"

	"github.com/chaos-io/removebg/composite"
	"github.com/chaos-io/removebg/raster"
	"github.com/chaos-io/removebg/util"
	"github.com/gin-gonic/gin"
)

const (
	fieldImage      = "image"
	fieldBackground = "background"
	fieldBgType     = "bg"
	fieldColor      = "color"
	fieldBlur       = "blur"
	fieldMirror     = "mirror"
)

// readImage 读取上传的图片，只接受 image/*
func readImage(c *gin.Context, field string) (image.Image, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, err
		}
		return nil, validationErrorf("missing %q file", field)
	}
	if ct := fh.Header.Get("Content-Type"); !util.IsImageContentType(ct) {
		return nil, validationErrorf("%q must be an image, got %q", field, ct)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	img, _, err := util.DecodeImage(f)
	if err != nil {
		return nil, validationErrorf("%v", err)
	}
	return img, nil
}

// readRaster readImage 后按 mirror 字段做水平镜像
func readRaster(c *gin.Context, field string) (raster.Image, error) {
	img, err := readImage(c, field)
	if err != nil {
		return raster.Image{}, err
	}
	r := raster.FromImage(img)
	if r.Empty() {
		return raster.Image{}, validationErrorf("%q is empty", field)
	}

	mirror, err := formBool(c, fieldMirror)
	if err != nil {
		return raster.Image{}, err
	}
	if mirror {
		r = raster.MirrorHorizontal(r)
	}
	return r, nil
}

// readBackground bg=transparent|color|image，默认 transparent
func readBackground(c *gin.Context) (composite.Background, error) {
	switch strings.ToLower(strings.TrimSpace(c.PostForm(fieldBgType))) {
	case "", "transparent":
		return composite.Transparent{}, nil
	case "color":
		hex := c.DefaultPostForm(fieldColor, composite.DefaultColor)
		bg, err := composite.SolidHex(hex)
		if err != nil {
			return nil, validationErrorf("invalid color %q", hex)
		}
		return bg, nil
	case "image":
		img, err := readImage(c, fieldBackground)
		if err != nil {
			return nil, err
		}
		blur := 0
		if v := c.PostForm(fieldBlur); v != "" {
			blur, err = strconv.Atoi(v)
			if err != nil {
				return nil, validationErrorf("invalid blur %q", v)
			}
		}
		return composite.Photo{Source: raster.FromImage(img), BlurRadius: blur}, nil
	default:
		return nil, validationErrorf("unknown background type %q", c.PostForm(fieldBgType))
	}
}

func formBool(c *gin.Context, field string) (bool, error) {
	v := c.PostForm(field)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, validationErrorf("invalid %s %q", field, v)
	}
	return b, nil
}
