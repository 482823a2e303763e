package handlers

import (
	"rbacadmin/internal/middleware"
	"rbacadmin/internal/services"
	"rbacadmin/pkg/response"

	"github.com/gin-gonic/gin"
)

type MenuUsageHandler struct {
	service *services.MenuUsageService
}

func NewMenuUsageHandler(service *services.MenuUsageService) *MenuUsageHandler {
	return &MenuUsageHandler{service: service}
}

// Log 记录一次菜单访问
func (h *MenuUsageHandler) Log(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req services.MenuAccessRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.Log(c.Request.Context(), *identity, req, middleware.ClientMeta(c)); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "菜单访问已记录", nil)
}

// Report 访问明细
func (h *MenuUsageHandler) Report(c *gin.Context) {
	records, err := h.service.Report(c.Request.Context(), c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, records)
}

func (h *MenuUsageHandler) MenuSummary(c *gin.Context) {
	summary, err := h.service.MenuSummary(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, summary)
}

func (h *MenuUsageHandler) UserSummary(c *gin.Context) {
	summary, err := h.service.UserSummary(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, summary)
}
