package middleware

import (
	"rbacadmin/pkg/logger"
	"rbacadmin/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorHandler 错误处理中间件 - 主要处理panic
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.GetLogger().WithFields(logrus.Fields{
					"path":       c.Request.URL.Path,
					"method":     c.Request.Method,
					"request_id": c.GetString(ContextRequestID),
				}).Errorf("Panic recovered: %v", err)
				response.ServerError(c, response.MessageServerError)
				c.Abort()
			}
		}()

		c.Next()
	}
}

// NotFound 未匹配路由
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.NotFound(c, "接口不存在")
	}
}

// RequestLogger 访问日志
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.GetLogger().WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"ip":         c.ClientIP(),
			"request_id": c.GetString(ContextRequestID),
		}).Debug("request completed")
	}
}
