package xhttp

import (
	"strings"
	"time"

	"github.com/oneclick/wa-gateway/pkg/logger"
	"github.com/valyala/fasthttp"
)

const slowThreshold = 500 * time.Millisecond

var skipPaths = []string{"/health", "/metrics"}

type MiddlewareFunc func(next RequestHandler) RequestHandler
type RequestCtx = fasthttp.RequestCtx
type RequestHandler = fasthttp.RequestHandler

func TimeoutMiddleware(timeout time.Duration) MiddlewareFunc {
	return func(next RequestHandler) RequestHandler {
		return fasthttp.TimeoutWithCodeHandler(next, timeout, StatusText(StatusRequestTimeout), StatusRequestTimeout)
	}
}

func CompressMiddleware(level int) MiddlewareFunc {
	return func(next RequestHandler) RequestHandler {
		return fasthttp.CompressHandlerBrotliLevel(next, level, level)
	}
}

func RecoverMiddleware(next RequestHandler) RequestHandler {
	return func(ctx *RequestCtx) {
		defer func() {
			if err := recover(); err != nil {
				ctx.Error(StatusText(StatusInternalServerError), StatusInternalServerError)
				ctx.Logger().Printf("panic: %v", err)
				logger.Error("[xhttp] panic recovered", "error", err)
			}
		}()
		next(ctx)
	}
}

// RequestLoggerMiddleware emits one structured line per request. 5xx
// logs at error, 4xx and slow requests at warn, the rest at info.
func RequestLoggerMiddleware(next RequestHandler) RequestHandler {
	return func(ctx *RequestCtx) {
		path := string(ctx.Path())
		if shouldSkip(path) {
			next(ctx)
			return
		}

		start := time.Now()
		next(ctx)
		latency := time.Since(start)

		status := ctx.Response.StatusCode()
		fields := []any{
			"status", status,
			"method", string(ctx.Method()),
			"path", path,
			"latency", latency.String(),
			"bytes_in", len(ctx.PostBody()),
			"bytes_out", len(ctx.Response.Body()),
			"ip", ctx.RemoteIP().String(),
			"ua", string(ctx.Request.Header.UserAgent()),
			"request_id", requestID(ctx),
		}

		lg := logger.GetLogger()
		switch {
		case status >= 500:
			lg.Error("http_request", fields...)
		case status >= 400 || latency > slowThreshold:
			lg.Warn("http_request", fields...)
		default:
			lg.Info("http_request", fields...)
		}
	}
}

func shouldSkip(p string) bool {
	for _, sp := range skipPaths {
		if strings.HasPrefix(p, sp) {
			return true
		}
	}
	return false
}

func requestID(ctx *RequestCtx) string {
	for _, h := range []string{"X-Request-Id", "X-Request-ID"} {
		if v := ctx.Request.Header.Peek(h); len(v) > 0 {
			return string(v)
		}
	}
	return ""
}
