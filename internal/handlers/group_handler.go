package handlers

import (
	"rbacadmin/internal/services"
	"rbacadmin/pkg/response"

	"github.com/gin-gonic/gin"
)

type GroupMenuRequest struct {
	MenuID uint `json:"menuId" binding:"required"`
}

type GroupMemberRequest struct {
	UserID uint `json:"userId" binding:"required"`
}

// PermissionMatrixRequest 整体替换权限
type PermissionMatrixRequest struct {
	Permissions []services.PermissionInput `json:"permissions" binding:"required,dive"`
}

type GroupHandler struct {
	groups      *services.GroupService
	permissions *services.PermissionService
}

func NewGroupHandler(groups *services.GroupService, permissions *services.PermissionService) *GroupHandler {
	return &GroupHandler{groups: groups, permissions: permissions}
}

// List 用户组列表（含成员数）
func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.groups.List(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, groups)
}

// Get 用户组详情（含成员和权限）
func (h *GroupHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	group, err := h.groups.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, group)
}

func (h *GroupHandler) Create(c *gin.Context) {
	var req services.CreateGroupRequest
	if !bindJSON(c, &req) {
		return
	}
	group, err := h.groups.Create(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "用户组创建成功", group)
}

func (h *GroupHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateGroupRequest
	if !bindJSON(c, &req) {
		return
	}
	group, err := h.groups.Update(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "用户组更新成功", group)
}

func (h *GroupHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.groups.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "用户组删除成功", nil)
}

// ========== 组权限 ==========

// Permissions 组的权限矩阵
func (h *GroupHandler) Permissions(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	views, err := h.permissions.GetGroupPermissions(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, views)
}

// SetPermissions 整体替换组权限
func (h *GroupHandler) SetPermissions(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req PermissionMatrixRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.permissions.SetGroupPermissions(c.Request.Context(), id, req.Permissions); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "权限分配成功", nil)
}

// Menus 组可查看的菜单
func (h *GroupHandler) Menus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	menus, err := h.permissions.GroupMenus(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, menus)
}

// AddMenu 授予组菜单查看权限
func (h *GroupHandler) AddMenu(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req GroupMenuRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.permissions.GrantMenuToGroup(c.Request.Context(), id, req.MenuID); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "菜单已添加到用户组", nil)
}

// RemoveMenu 撤销组菜单查看权限
func (h *GroupHandler) RemoveMenu(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	menuID, ok := parseID(c, "menuId")
	if !ok {
		return
	}
	if err := h.permissions.RevokeMenuFromGroup(c.Request.Context(), id, menuID); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "菜单已从用户组移除", nil)
}

// ========== 组成员 ==========

func (h *GroupHandler) Members(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	members, err := h.groups.Members(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, members)
}

func (h *GroupHandler) AddMember(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req GroupMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.groups.AddMember(c.Request.Context(), id, req.UserID); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "用户已添加到用户组", nil)
}

func (h *GroupHandler) RemoveMember(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}
	if err := h.groups.RemoveMember(c.Request.Context(), id, userID); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "用户已从用户组移除", nil)
}
