package handlers

import (
	"context"
	"net/http"
	"time"

	"rbacadmin/internal/services"
	"rbacadmin/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SystemHandler 健康检查与指标
type SystemHandler struct {
	health *services.HealthChecker
}

func NewSystemHandler(health *services.HealthChecker) *SystemHandler {
	return &SystemHandler{health: health}
}

// Health 检查数据库与Redis，unhealthy时返回503
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := h.health.Check(ctx)
	code := http.StatusOK
	if status.Status == services.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, response.Response{
		Success: code == http.StatusOK,
		Data:    status,
	})
}

// Live 进程存活即返回200
func (h *SystemHandler) Live(c *gin.Context) {
	response.Success(c, gin.H{
		"status":    services.StatusHealthy,
		"timestamp": time.Now().UTC(),
	})
}

// Metrics Prometheus指标
func (h *SystemHandler) Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
