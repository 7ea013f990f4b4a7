package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/tracker/internal/logger"
)

// RequestLogger logs one line per request, at error level when a handler
// attached an error.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if u := CurrentUser(c); !u.IsAnonymous() {
			fields = append(fields, "user", u.Name)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.String())
			log.Error("request failed", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}
