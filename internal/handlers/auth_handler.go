package handlers

import (
	"rbacadmin/internal/middleware"
	"rbacadmin/internal/services"
	"rbacadmin/pkg/response"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthHandler 登录、个人信息与改密
type AuthHandler struct {
	sessions *services.SessionService
	authz    *services.AuthorizationService
	users    *services.UserService
}

func NewAuthHandler(sessions *services.SessionService, authz *services.AuthorizationService, users *services.UserService) *AuthHandler {
	return &AuthHandler{sessions: sessions, authz: authz, users: users}
}

// Login 登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	// 请求体格式错误时按缺少字段处理，仍然记录一次登录失败
	_ = c.ShouldBindJSON(&req)

	issued, err := h.sessions.Authenticate(c.Request.Context(), req.Username, req.Password, middleware.ClientMeta(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "登录成功", issued)
}

// Profile 当前用户信息及所在组
func (h *AuthHandler) Profile(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	detail, err := h.users.GetByID(c.Request.Context(), identity.UserID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{
		"user":   detail.Profile(),
		"groups": detail.Groups,
	})
}

// Menus 当前用户可见菜单
func (h *AuthHandler) Menus(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	menus, err := h.authz.EffectiveMenus(c.Request.Context(), identity.UserID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, menus)
}

// ChangePassword 修改本人密码
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req services.ChangePasswordRequest
	// 请求体格式错误时按缺少字段处理，仍然记录一次改密失败
	_ = c.ShouldBindJSON(&req)
	if err := h.sessions.ChangePassword(c.Request.Context(), *identity, req, middleware.ClientMeta(c)); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "密码修改成功", nil)
}
