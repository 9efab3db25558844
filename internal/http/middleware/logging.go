// README: Request logging and per-route request counters.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"coload/internal/logger"
	"coload/internal/metrics"
)

func Logging(log logger.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()

		kv := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
		}
		if uid := CallerUID(c); uid != "" {
			kv = append(kv, "uid", uid)
		}
		switch {
		case status >= 500:
			log.Error("http request", kv...)
		case status >= 400:
			log.Warn("http request", kv...)
		default:
			log.Debug("http request", kv...)
		}
	}
}
