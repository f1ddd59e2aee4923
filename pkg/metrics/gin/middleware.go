package gin

import (
	"strconv"
	"time"

	"github.com/ajgcsol/videopipeline/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// PrometheusMiddleware records request metrics for every gin route.
func PrometheusMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		statusCode := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method + " " + c.FullPath()

		metrics.RecordRequest(serviceName, method, statusCode, time.Since(start))
	}
}
