package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chaos-io/removebg/isolate"
	"github.com/chaos-io/removebg/pipeline"
	"github.com/gin-gonic/gin"
)

// ErrValidation 请求参数不合法
var ErrValidation = errors.New("validation failed")

// statusClientClosedRequest 客户端已断开，沿用 nginx 的 499
const statusClientClosedRequest = 499

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func determineStatusCode(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, isolate.ErrUnauthorized), errors.Is(err, isolate.ErrIsolationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// userMessage 参数错误直接展示原因，其余使用统一提示
func userMessage(err error) string {
	if errors.Is(err, ErrValidation) {
		return err.Error()
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return fmt.Sprintf("upload exceeds %d bytes", maxBytesErr.Limit)
	}
	return pipeline.UserMessage(err)
}

func respondError(c *gin.Context, err error) {
	code := determineStatusCode(err)
	if code == statusClientClosedRequest {
		// 客户端已经走了，不再写响应体
		slog.Warn("request canceled by client",
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"ip", c.ClientIP())
		c.AbortWithStatus(code)
		return
	}

	slog.Error("request failed",
		"status_code", code,
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
		"ip", c.ClientIP(),
		"error", err)

	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: userMessage(err),
	})
}
