package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"rbacadmin/internal/audit"
	"rbacadmin/internal/models"
	apperrors "rbacadmin/pkg/errors"
	"rbacadmin/pkg/jwt"
	"rbacadmin/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const MinPasswordLength = 6

// ClientMeta 发起请求的客户端信息，用于审计
type ClientMeta struct {
	IPAddress    string
	UserAgent    string
	ComputerName string
	RequestID    string
}

func (m ClientMeta) event(userID *uint, username string, action models.AuditAction, resource models.AuditResource, extra map[string]interface{}) audit.Event {
	client := audit.ParseClient(m.UserAgent, m.ComputerName)
	details := map[string]interface{}{
		"computerName": client.ComputerName,
		"browser":      client.Browser,
		"os":           client.OS,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}
	if m.RequestID != "" {
		details["requestId"] = m.RequestID
	}
	for k, v := range extra {
		details[k] = v
	}
	return audit.Event{
		UserID:    userID,
		Username:  username,
		Action:    action,
		Resource:  resource,
		IPAddress: m.IPAddress,
		UserAgent: m.UserAgent,
		Details:   details,
	}
}

// Identity 令牌中携带的身份信息
type Identity struct {
	UserID   uint
	Username string
	IsAdmin  bool
}

// SessionIssued 登录成功结果
type SessionIssued struct {
	Token     string             `json:"token"`
	IssuedAt  time.Time          `json:"issuedAt"`
	ExpiresAt time.Time          `json:"expiresAt"`
	User      models.UserProfile `json:"user"`
	Menus     []models.Menu      `json:"menus"`
}

// SessionService 登录、令牌校验与自助改密
type SessionService struct {
	db       *gorm.DB
	jwt      *jwt.JWTManager
	authz    *AuthorizationService
	recorder audit.Recorder
}

func NewSessionService(db *gorm.DB, jwtManager *jwt.JWTManager, authz *AuthorizationService, recorder audit.Recorder) *SessionService {
	if recorder == nil {
		recorder = audit.Nop
	}
	return &SessionService{db: db, jwt: jwtManager, authz: authz, recorder: recorder}
}

// Authenticate 校验用户名密码并签发令牌。无论成功失败都恰好记录一条LOGIN或LOGIN_FAILED审计
func (s *SessionService) Authenticate(ctx context.Context, username, password string, meta ClientMeta) (issued *SessionIssued, err error) {
	var user *models.User
	reason := ""
	defer func() {
		auditName := username
		if auditName == "" {
			auditName = audit.UsernameUnknown
		}
		if err == nil {
			s.recorder.Record(meta.event(&user.ID, auditName, models.AuditLogin, models.ResourceAuth, map[string]interface{}{
				"statusCode": 200,
			}))
			return
		}
		var userID *uint
		if user != nil {
			userID = &user.ID
		}
		s.recorder.Record(meta.event(userID, auditName, models.AuditLoginFailed, models.ResourceAuth, map[string]interface{}{
			"statusCode": apperrors.HTTPStatus(err),
			"reason":     reason,
		}))
	}()

	if strings.TrimSpace(username) == "" || password == "" {
		reason = "missing_fields"
		return nil, apperrors.Validation("请输入用户名和密码")
	}

	var found models.User
	if err := s.db.WithContext(ctx).Where("username = ? AND is_active = ?", username, true).Take(&found).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			reason = "unknown_user"
			return nil, apperrors.ErrInvalidCredentials
		}
		reason = "lookup_failed"
		return nil, apperrors.Internal("查询用户失败", err)
	}
	user = &found

	if !user.CheckPassword(password) {
		reason = "bad_password"
		return nil, apperrors.ErrInvalidCredentials
	}

	menus, err := s.authz.effectiveMenusFor(ctx, user)
	if err != nil {
		reason = "menu_resolution_failed"
		return nil, err
	}

	token, issuedAt, expiresAt, err := s.jwt.GenerateToken(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		reason = "token_failed"
		return nil, apperrors.Internal("生成Token失败", err)
	}

	logger.GetLogger().WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
		"ip":       meta.IPAddress,
	}).Info("user logged in")

	return &SessionIssued{
		Token:     token,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		User:      user.Profile(),
		Menus:     menus,
	}, nil
}

// Verify 校验令牌签名与有效期，不访问数据库
func (s *SessionService) Verify(token string) (*Identity, error) {
	if token == "" {
		return nil, apperrors.ErrTokenInvalidOrExpired
	}
	claims, err := s.jwt.VerifyToken(token)
	if err != nil {
		return nil, apperrors.ErrTokenInvalidOrExpired
	}
	return &Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		IsAdmin:  claims.IsAdmin,
	}, nil
}

// ChangePasswordRequest 自助修改密码
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ChangePassword 修改本人密码，需验证当前密码。无论成功失败都恰好记录一条CHANGE_PASSWORD或CHANGE_PASSWORD_FAILED审计
func (s *SessionService) ChangePassword(ctx context.Context, actor Identity, req ChangePasswordRequest, meta ClientMeta) (err error) {
	reason := ""
	defer func() {
		userID := actor.UserID
		if err == nil {
			s.recorder.Record(meta.event(&userID, actor.Username, models.AuditChangePassword, models.ResourceAuth, map[string]interface{}{
				"statusCode": 200,
			}))
			return
		}
		s.recorder.Record(meta.event(&userID, actor.Username, models.AuditChangePasswordFailed, models.ResourceAuth, map[string]interface{}{
			"statusCode": apperrors.HTTPStatus(err),
			"reason":     reason,
		}))
	}()

	if req.CurrentPassword == "" || req.NewPassword == "" || req.ConfirmPassword == "" {
		reason = "missing_fields"
		return apperrors.Validation("请填写当前密码、新密码和确认密码")
	}
	if req.NewPassword != req.ConfirmPassword {
		reason = "mismatch"
		return apperrors.Validation("两次输入的新密码不一致")
	}
	if len(req.NewPassword) < MinPasswordLength {
		reason = "too_short"
		return apperrors.Validation("新密码长度不能少于6位")
	}
	if req.NewPassword == req.CurrentPassword {
		reason = "same_as_current"
		return apperrors.Validation("新密码不能与当前密码相同")
	}

	var user models.User
	if err := s.db.WithContext(ctx).Take(&user, actor.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			reason = "unknown_user"
			return apperrors.NotFound("用户不存在")
		}
		reason = "lookup_failed"
		return apperrors.Internal("查询用户失败", err)
	}

	if !user.CheckPassword(req.CurrentPassword) {
		reason = "wrong_current_password"
		return apperrors.Authentication("当前密码错误")
	}

	if err := user.SetPassword(req.NewPassword); err != nil {
		reason = "hash_failed"
		return apperrors.Internal("密码加密失败", err)
	}
	if err := s.db.WithContext(ctx).Model(&user).Update("password", user.PasswordHash).Error; err != nil {
		reason = "save_failed"
		return apperrors.Internal("保存密码失败", err)
	}
	return nil
}
