package middleware

import (
	"rbacadmin/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID    = "X-Request-ID"
	HeaderComputerName = "X-Computer-Name"
	ContextRequestID   = "request_id"
)

// RequestID 为每个请求分配ID，沿用客户端传入的值
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(ContextRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// ClientMeta 提取审计所需的客户端信息
func ClientMeta(c *gin.Context) services.ClientMeta {
	return services.ClientMeta{
		IPAddress:    c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
		ComputerName: c.GetHeader(HeaderComputerName),
		RequestID:    c.GetString(ContextRequestID),
	}
}
