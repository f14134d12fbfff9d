package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mailboxgw/internal/constants"
	"mailboxgw/internal/metrics"
)

// RequestLogger API请求日志中间件，同时记录 prometheus 指标
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 获取请求ID，方便跟踪
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(constants.ContextKeyRequestID, requestID)
		c.Header("X-Request-ID", requestID)

		startTime := time.Now()

		// 处理请求
		c.Next()

		latency := time.Since(startTime)
		status := c.Writer.Status()

		// 使用路由模板作为标签，避免 session/id 造成高基数
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(latency.Seconds())

		event := log.Info()
		if status >= 500 {
			event = log.Error()
		} else if status >= 400 {
			event = log.Warn()
		}
		event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("请求完成")
	}
}
