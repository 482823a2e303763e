package middleware

import (
	"context"
	"strings"

	"rbacadmin/internal/models"
	"rbacadmin/internal/services"
	"rbacadmin/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	ContextIdentity = "identity"
	ContextUserID   = "user_id"
	ContextUsername = "username"
)

// AuthMiddleware 登录校验与权限闸门
type AuthMiddleware struct {
	sessions *services.SessionService
	authz    *services.AuthorizationService
}

func NewAuthMiddleware(sessions *services.SessionService, authz *services.AuthorizationService) *AuthMiddleware {
	return &AuthMiddleware{
		sessions: sessions,
		authz:    authz,
	}
}

// RequireLogin 校验Bearer令牌并把身份写入上下文
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		identity, err := m.sessions.Verify(tokenString)
		if err != nil {
			response.FromError(c, err)
			c.Abort()
			return
		}

		c.Set(ContextIdentity, identity)
		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextUsername, identity.Username)

		c.Next()
	}
}

// RequireAdminOrAdminGroup 管理员或管理员组成员
func (m *AuthMiddleware) RequireAdminOrAdminGroup() gin.HandlerFunc {
	return m.gate("需要管理员权限", m.authz.IsAdminOrAdminGroup)
}

// RequireAdminGroup 仅管理员组成员
func (m *AuthMiddleware) RequireAdminGroup() gin.HandlerFunc {
	return m.gate("需要管理员组权限", m.authz.IsAdminGroupMember)
}

// RequireMenuPermission 要求对菜单拥有指定操作权限
func (m *AuthMiddleware) RequireMenuPermission(menuPath string, action models.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		allowed, err := m.authz.Can(c.Request.Context(), identity.UserID, menuPath, action)
		if err != nil {
			response.FromError(c, err)
			c.Abort()
			return
		}
		if !allowed {
			response.Forbidden(c, "权限不足：需要 "+menuPath+" 的 "+string(action)+" 权限")
			c.Abort()
			return
		}

		c.Next()
	}
}

func (m *AuthMiddleware) gate(denied string, check func(ctx context.Context, userID uint) (bool, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		allowed, err := check(c.Request.Context(), identity.UserID)
		if err != nil {
			response.FromError(c, err)
			c.Abort()
			return
		}
		if !allowed {
			response.Forbidden(c, denied)
			c.Abort()
			return
		}

		c.Next()
	}
}

// CurrentIdentity 读取RequireLogin写入的身份
func CurrentIdentity(c *gin.Context) (*services.Identity, bool) {
	v, exists := c.Get(ContextIdentity)
	if !exists {
		return nil, false
	}
	identity, ok := v.(*services.Identity)
	return identity, ok && identity != nil
}

// bearerToken 从Authorization头提取令牌，WebSocket握手时允许使用token查询参数
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if websocket.IsWebSocketUpgrade(c.Request) {
			token := c.Query("token")
			return token, token != ""
		}
		return "", false
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authHeader[len("Bearer "):])
	return token, token != ""
}
