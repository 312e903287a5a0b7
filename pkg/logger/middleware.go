package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorLoggerMiddleware 错误日志中间件，panic 时记录并返回500
func ErrorLoggerMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		Error("HTTP请求发生panic",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
			zap.Any("error", recovered),
		)
		c.AbortWithStatus(500)
	})
}

// RequestLogger 请求日志记录器，按状态码选择日志级别
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"ip":         c.ClientIP(),
			"status":     status,
			"latency":    latency.String(),
			"user_agent": c.Request.UserAgent(),
		}
		// 认证中间件写入的用户ID
		if userID, ok := c.Get("user_id"); ok {
			fields["user_id"] = userID
		}
		logger := WithFields(fields)

		switch {
		case status >= 500:
			logger.Error("HTTP请求错误")
		case status >= 400:
			logger.Warn("HTTP请求警告")
		default:
			logger.Info("HTTP请求成功")
		}
	}
}
