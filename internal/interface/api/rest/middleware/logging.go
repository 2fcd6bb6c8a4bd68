package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const maxLogBodySize = 1 << 12 // 4 KB

func RequestLogGin(logger *zap.Logger, mCounter *prometheus.CounterVec) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions ||
			c.Request.URL.Path == "/favicon.ico" ||
			strings.HasSuffix(c.Request.URL.Path, "/metrics") ||
			strings.HasSuffix(c.Request.URL.Path, "/healthz") {
			c.Next()
			return
		}

		start := time.Now()

		// file bodies are never logged, only small control payloads
		var body string
		if c.Request != nil && c.Request.Body != nil && c.Request.Method != http.MethodGet {
			ct := c.GetHeader("Content-Type")
			if strings.HasPrefix(ct, "multipart/form-data") || strings.HasPrefix(ct, "application/octet-stream") {
				body = "<file content omitted>"
			} else {
				var buf bytes.Buffer
				limited := io.LimitReader(c.Request.Body, maxLogBodySize)
				_, _ = io.Copy(&buf, limited)
				body = buf.String()
				c.Request.Body = readCloser{io.MultiReader(bytes.NewReader(buf.Bytes()), c.Request.Body), c.Request.Body}
			}
		}

		c.Next()

		if mCounter != nil {
			mCounter.WithLabelValues("app_requests_total").Inc()
			if c.Writer.Status() >= http.StatusInternalServerError {
				mCounter.WithLabelValues("app_requests_failed_total").Inc()
			}
		}

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("url", c.FullPath()),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes_out", c.Writer.Size()),
			zap.Duration("duration", time.Since(start)),
			zap.String("body", body),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// readCloser replays the logged prefix and keeps the original Close.
type readCloser struct {
	io.Reader
	io.Closer
}
