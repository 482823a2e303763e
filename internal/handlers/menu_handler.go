package handlers

import (
	"rbacadmin/internal/services"
	"rbacadmin/pkg/response"

	"github.com/gin-gonic/gin"
)

type MenuHandler struct {
	service *services.MenuService
}

func NewMenuHandler(service *services.MenuService) *MenuHandler {
	return &MenuHandler{service: service}
}

func (h *MenuHandler) List(c *gin.Context) {
	menus, err := h.service.List(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, menus)
}

func (h *MenuHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	menu, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, menu)
}

func (h *MenuHandler) Create(c *gin.Context) {
	var req services.CreateMenuRequest
	if !bindJSON(c, &req) {
		return
	}
	menu, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "菜单创建成功", menu)
}

func (h *MenuHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateMenuRequest
	if !bindJSON(c, &req) {
		return
	}
	menu, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "菜单更新成功", menu)
}

func (h *MenuHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "菜单删除成功", nil)
}
