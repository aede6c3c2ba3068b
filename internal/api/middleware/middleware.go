// Package middleware holds Gin middleware shared across the API server that
// doesn't belong to a single handler group.
package middleware

import (
	"bytes"
	"io"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meitianwang/llm-gateway/internal/logging"
)

// RequestLoggingMiddleware returns a Gin middleware that records every
// request's method, path, status, latency, and body through logger. The
// middleware is a no-op once disabled via the logger's optional
// SetEnabled(bool) method.
func RequestLoggingMiddleware(logger logging.RequestLogger) gin.HandlerFunc {
	type toggleable interface{ Enabled() bool }

	return func(c *gin.Context) {
		var enabled atomic.Bool
		enabled.Store(true)
		if t, ok := logger.(toggleable); ok {
			enabled.Store(t.Enabled())
		}

		var bodyCopy []byte
		if enabled.Load() && c.Request.Body != nil {
			bodyCopy, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(bodyCopy))
		}

		start := time.Now()
		c.Next()

		if !enabled.Load() {
			return
		}

		logger.LogRequest(logging.RequestLogEntry{
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			Status:     c.Writer.Status(),
			DurationMS: time.Since(start).Milliseconds(),
			Body:       bodyCopy,
		})
	}
}
