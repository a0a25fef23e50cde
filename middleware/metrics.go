package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/solecare/solecare-api/metrics"
)

// Metrics records a request counter and latency per route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start).Seconds())
	}
}
