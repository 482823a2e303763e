package services

import (
	"context"
	"errors"

	"rbacadmin/internal/models"
	apperrors "rbacadmin/pkg/errors"

	"gorm.io/gorm"
)

// AuthorizationService 权限判定：可见菜单与菜单操作权限的唯一来源
type AuthorizationService struct {
	db *gorm.DB
}

func NewAuthorizationService(db *gorm.DB) *AuthorizationService {
	return &AuthorizationService{db: db}
}

// EffectiveMenus 返回用户可见的菜单，按orderIndex排序。
// 管理员可见全部启用菜单；普通用户可见其所在任一组授予了查看权限的启用菜单
func (s *AuthorizationService) EffectiveMenus(ctx context.Context, actorID uint) ([]models.Menu, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.effectiveMenusFor(ctx, actor)
}

func (s *AuthorizationService) effectiveMenusFor(ctx context.Context, actor *models.User) ([]models.Menu, error) {
	menus := []models.Menu{}
	if !actor.IsActive {
		return menus, nil
	}

	query := s.db.WithContext(ctx).Where("is_active = ?", true)
	if !actor.IsAdmin {
		viewable := s.db.Model(&models.GroupPermission{}).
			Select("group_permissions.menu_id").
			Joins("JOIN user_groups ON user_groups.group_id = group_permissions.group_id").
			Where("user_groups.user_id = ? AND group_permissions.can_view = ?", actor.ID, true)
		query = query.Where("id IN (?)", viewable)
	}

	if err := query.Order("order_index ASC, id ASC").Find(&menus).Error; err != nil {
		return nil, apperrors.Internal("查询菜单失败", err)
	}
	return menus, nil
}

// Can 判断用户能否对菜单执行操作。
// 顺序：管理员直接放行 → 菜单不存在或停用返回NotFound → 用户级权限存在时以其为准（可拒绝） → 任一组授权即放行 → 拒绝
func (s *AuthorizationService) Can(ctx context.Context, actorID uint, menuPath string, action models.Action) (bool, error) {
	if _, err := models.ParseAction(string(action)); err != nil {
		return false, apperrors.Validation(err.Error())
	}

	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return false, err
	}
	if !actor.IsActive {
		return false, nil
	}
	if actor.IsAdmin {
		return true, nil
	}

	db := s.db.WithContext(ctx)

	var menu models.Menu
	if err := db.Where("path = ? AND is_active = ?", menuPath, true).Take(&menu).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperrors.NotFound("菜单不存在")
		}
		return false, apperrors.Internal("查询菜单失败", err)
	}

	var override models.UserPermission
	err = db.Where("user_id = ? AND menu_id = ?", actor.ID, menu.ID).Take(&override).Error
	switch {
	case err == nil:
		return override.Allows(action), nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return false, apperrors.Internal("查询用户权限失败", err)
	}

	var grants []models.GroupPermission
	err = db.Where("menu_id = ? AND group_id IN (?)", menu.ID,
		s.db.Model(&models.Membership{}).Select("group_id").Where("user_id = ?", actor.ID)).
		Find(&grants).Error
	if err != nil {
		return false, apperrors.Internal("查询组权限失败", err)
	}
	return anyGroupGrants(grants, action), nil
}

// anyGroupGrants 多组权限取并集：只要有一个组授予该操作即视为允许
func anyGroupGrants(grants []models.GroupPermission, action models.Action) bool {
	for _, g := range grants {
		if g.Allows(action) {
			return true
		}
	}
	return false
}

// IsAdminGroupMember 是否属于名为admin的组（忽略大小写），与管理员标记无关
func (s *AuthorizationService) IsAdminGroupMember(ctx context.Context, actorID uint) (bool, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return false, err
	}
	if !actor.IsActive {
		return false, nil
	}
	return s.inAdminGroup(ctx, actor.ID)
}

// IsAdminOrAdminGroup 管理员标记或管理员组成员，粗粒度的后台管理入口判定
func (s *AuthorizationService) IsAdminOrAdminGroup(ctx context.Context, actorID uint) (bool, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return false, err
	}
	if !actor.IsActive {
		return false, nil
	}
	if actor.IsAdmin {
		return true, nil
	}
	return s.inAdminGroup(ctx, actor.ID)
}

func (s *AuthorizationService) inAdminGroup(ctx context.Context, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Membership{}).
		Joins("JOIN groups ON groups.id = user_groups.group_id").
		Where("user_groups.user_id = ? AND LOWER(groups.name) = ?", userID, models.AdminGroupName).
		Count(&count).Error
	if err != nil {
		return false, apperrors.Internal("查询用户组失败", err)
	}
	return count > 0, nil
}

func (s *AuthorizationService) loadActor(ctx context.Context, actorID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Take(&user, actorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Authentication("用户不存在")
		}
		return nil, apperrors.Internal("查询用户失败", err)
	}
	return &user, nil
}
