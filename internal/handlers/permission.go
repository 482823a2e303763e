package handlers

import (
	"rbacadmin/internal/services"
	"rbacadmin/pkg/response"

	"github.com/gin-gonic/gin"
)

// PermissionHandler 组与用户的权限矩阵
type PermissionHandler struct {
	service *services.PermissionService
}

func NewPermissionHandler(service *services.PermissionService) *PermissionHandler {
	return &PermissionHandler{service: service}
}

func (h *PermissionHandler) GetGroup(c *gin.Context) {
	groupID, ok := parseID(c, "groupId")
	if !ok {
		return
	}
	views, err := h.service.GetGroupPermissions(c.Request.Context(), groupID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, views)
}

func (h *PermissionHandler) SetGroup(c *gin.Context) {
	groupID, ok := parseID(c, "groupId")
	if !ok {
		return
	}
	var req PermissionMatrixRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.SetGroupPermissions(c.Request.Context(), groupID, req.Permissions); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "组权限更新成功", nil)
}

func (h *PermissionHandler) GetUser(c *gin.Context) {
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}
	views, err := h.service.GetUserPermissions(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, views)
}

func (h *PermissionHandler) SetUser(c *gin.Context) {
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}
	var req PermissionMatrixRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.SetUserPermissions(c.Request.Context(), userID, req.Permissions); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "用户权限更新成功", nil)
}
