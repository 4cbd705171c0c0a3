package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sam-thetutor/herlock/pkg/metrics"
)

// PerformanceMiddleware tracks request timing and outcome
func PerformanceMiddleware(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		collector.RecordRequest()

		c.Next()

		duration := time.Since(startTime)
		success := c.Writer.Status() >= 200 && c.Writer.Status() < 400

		collector.RecordRequestComplete(duration, success)

		c.Header("X-Response-Time", duration.String())
		c.Header("X-Response-Time-Ms", strconv.FormatInt(duration.Milliseconds(), 10))
	}
}
