package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// Requests returns gin middleware that logs one line per request with the
// given component logger.
func Requests(base *slog.Logger) gin.HandlerFunc {
	if base == nil {
		base = slog.Default()
	}
	log := base.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		switch {
		case status >= 500:
			log.Error("request", attrs...)
		case status >= 400:
			log.Warn("request", attrs...)
		default:
			log.Info("request", attrs...)
		}
	}
}
