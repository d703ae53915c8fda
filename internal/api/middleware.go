package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"userstats/internal/metrics"
)

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		code := c.Writer.Status()
		l := metrics.Labels{"status": strconv.Itoa(code)}
		metrics.IncCounter(metrics.HTTPRequestsTotal, 1, l)
		if code >= 400 {
			metrics.IncCounter(metrics.HTTPErrorsTotal, 1, l)
		}
		metrics.ObserveHistogram(metrics.HTTPRequestDurationSeconds, time.Since(start).Seconds(), l)
	}
}

func requestLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
