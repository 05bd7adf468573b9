package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/lms_backend/config"
)

func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status()/100) + "xx"
		config.HTTPRequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(started).Seconds())
	}
}
