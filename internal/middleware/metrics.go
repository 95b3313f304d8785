package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldserve/evidence-api/internal/service"
)

// Metrics returns middleware that captures request metrics using the provided
// service. Scrape and probe endpoints are excluded so the series are not
// dominated by the monitoring stack itself.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	skip := map[string]struct{}{
		"/metrics": {},
		"/health":  {},
		"/ready":   {},
	}
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()
		// templated route keeps signed download tokens out of label cardinality
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, status, duration)
	}
}
