// Package server 通过 HTTP 暴露抠图与合成
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chaos-io/removebg/composite"
	"github.com/chaos-io/removebg/pipeline"
	"github.com/chaos-io/removebg/raster"
	"github.com/chaos-io/removebg/sink"
	"github.com/chaos-io/removebg/util"
	"github.com/gin-gonic/gin"
)

const version = "1.0.0"

type Options struct {
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

type handler struct {
	pipeline *pipeline.Pipeline
	sink     sink.Sink
	opts     Options
}

// NewHandler s 为 nil 时不支持 store=true
func NewHandler(p *pipeline.Pipeline, s sink.Sink, opts Options) http.Handler {
	h := &handler{pipeline: p, sink: s, opts: opts}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	if opts.MaxUploadBytes > 0 {
		r.Use(requestSizeLimiter(opts.MaxUploadBytes))
	}

	r.GET("/health", healthCheck)

	v1 := r.Group("/v1")
	v1.GET("/presets", presets)
	v1.POST("/key", h.key)
	v1.POST("/composite", h.composite)
	v1.POST("/remove", h.remove)

	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func presets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"colors":   composite.PresetColors,
		"default":  composite.DefaultColor,
		"max_blur": composite.MaxBlurRadius,
	})
}

// key 上传品红底图片，返回抠图
func (h *handler) key(c *gin.Context) {
	src, err := readRaster(c, fieldImage)
	if err != nil {
		respondError(c, err)
		return
	}

	h.respond(c, h.pipeline.Key(src))
}

// composite 上传抠图与背景参数，返回合成结果
func (h *handler) composite(c *gin.Context) {
	subject, err := readRaster(c, fieldImage)
	if err != nil {
		respondError(c, err)
		return
	}
	bg, err := readBackground(c)
	if err != nil {
		respondError(c, err)
		return
	}

	h.respond(c, h.pipeline.Export(subject, bg))
}

// remove 完整流程：隔离 → 抠像 → 合成
func (h *handler) remove(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	src, err := readRaster(c, fieldImage)
	if err != nil {
		respondError(c, err)
		return
	}
	bg, err := readBackground(c)
	if err != nil {
		respondError(c, err)
		return
	}

	out, err := h.pipeline.Run(ctx, src.NRGBA(), bg)
	if err != nil {
		respondError(c, err)
		return
	}

	h.respond(c, out)
}

// respond store=true 时写入 sink 并返回 JSON，否则直接返回 PNG
func (h *handler) respond(c *gin.Context, img raster.Image) {
	store, err := formBool(c, "store")
	if err != nil {
		respondError(c, err)
		return
	}

	if store {
		if h.sink == nil {
			respondError(c, validationErrorf("export storage is not configured"))
			return
		}
		res, err := h.sink.Save(c.Request.Context(), img)
		if err != nil {
			respondError(c, fmt.Errorf("save export: %w", err))
			return
		}
		c.JSON(http.StatusCreated, res)
		return
	}

	data, err := util.EncodePNG(img.NRGBA())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, sink.ExportName()))
	c.Data(http.StatusOK, "image/png", data)
}

func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.opts.RequestTimeout > 0 {
		return context.WithTimeout(c.Request.Context(), h.opts.RequestTimeout)
	}
	return context.WithCancel(c.Request.Context())
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			respondError(c, &http.MaxBytesError{Limit: maxBytes})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"ip", c.ClientIP(),
			"cost", time.Since(start))
	}
}
