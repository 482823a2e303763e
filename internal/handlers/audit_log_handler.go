package handlers

import (
	"strconv"

	"rbacadmin/internal/services"
	"rbacadmin/pkg/pagination"
	"rbacadmin/pkg/response"

	"github.com/gin-gonic/gin"
)

type CleanLogsRequest struct {
	Days *int `json:"days"`
}

type AuditLogHandler struct {
	service *services.AuditLogService
}

func NewAuditLogHandler(service *services.AuditLogService) *AuditLogHandler {
	return &AuditLogHandler{service: service}
}

// Query 按条件查询审计日志，带page参数时分页
func (h *AuditLogHandler) Query(c *gin.Context) {
	var filter services.AuditLogFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "查询参数错误")
		return
	}
	filter.Page = pagination.Parse(c)
	page, err := h.service.Query(c.Request.Context(), filter)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, page)
}

// Stats 最近7天按动作统计
func (h *AuditLogHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, stats)
}

// Clean 清理超过保留天数的日志，days默认90
func (h *AuditLogHandler) Clean(c *gin.Context) {
	days := services.DefaultAuditRetentionDay

	var req CleanLogsRequest
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &req) {
			return
		}
	}
	switch {
	case req.Days != nil:
		days = *req.Days
	case c.Query("days") != "":
		n, err := strconv.Atoi(c.Query("days"))
		if err != nil {
			response.BadRequest(c, "保留天数必须为整数")
			return
		}
		days = n
	}

	deleted, err := h.service.PurgeOlderThan(c.Request.Context(), days)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "审计日志清理完成", gin.H{"deleted": deleted})
}
