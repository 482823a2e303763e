package services

import (
	"context"
	"errors"
	"fmt"

	"rbacadmin/internal/models"
	apperrors "rbacadmin/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PermissionService 组/用户权限矩阵维护
type PermissionService struct {
	db *gorm.DB
}

func NewPermissionService(db *gorm.DB) *PermissionService {
	return &PermissionService{db: db}
}

// PermissionInput 单个菜单的权限设置
type PermissionInput struct {
	MenuID    uint `json:"menuId" binding:"required"`
	CanView   bool `json:"canView"`
	CanCreate bool `json:"canCreate"`
	CanEdit   bool `json:"canEdit"`
	CanDelete bool `json:"canDelete"`
}

func (in PermissionInput) flags() models.PermissionFlags {
	return models.PermissionFlags{
		CanView:   in.CanView,
		CanCreate: in.CanCreate,
		CanEdit:   in.CanEdit,
		CanDelete: in.CanDelete,
	}
}

// PermissionView 带菜单信息的权限行
type PermissionView struct {
	MenuID    uint   `json:"menuId"`
	MenuName  string `json:"menuName"`
	MenuPath  string `json:"menuPath"`
	CanView   bool   `json:"canView"`
	CanCreate bool   `json:"canCreate"`
	CanEdit   bool   `json:"canEdit"`
	CanDelete bool   `json:"canDelete"`
}

// ========== 组权限 ==========

// GetGroupPermissions 获取组的全部权限行
func (s *PermissionService) GetGroupPermissions(ctx context.Context, groupID uint) ([]PermissionView, error) {
	db := s.db.WithContext(ctx)
	if err := ensureExists(db, &models.Group{}, groupID, "用户组不存在"); err != nil {
		return nil, err
	}
	return listPermissions(db, "group_permissions", "group_id", groupID)
}

// SetGroupPermissions 整体替换组权限，在同一事务内先删后插
func (s *PermissionService) SetGroupPermissions(ctx context.Context, groupID uint, inputs []PermissionInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, &models.Group{}, groupID, "用户组不存在"); err != nil {
			return err
		}
		if err := ensureMenus(tx, inputs); err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupPermission{}).Error; err != nil {
			return apperrors.Internal("清除组权限失败", err)
		}
		if len(inputs) == 0 {
			return nil
		}
		rows := make([]models.GroupPermission, 0, len(inputs))
		for _, in := range inputs {
			rows = append(rows, models.GroupPermission{GroupID: groupID, MenuID: in.MenuID, PermissionFlags: in.flags()})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return apperrors.Internal("保存组权限失败", err)
		}
		return nil
	})
}

// GrantMenuToGroup 授予组查看菜单的权限。已有记录只打开查看标记，其余标记保持不变
func (s *PermissionService) GrantMenuToGroup(ctx context.Context, groupID, menuID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, &models.Group{}, groupID, "用户组不存在"); err != nil {
			return err
		}
		if err := ensureExists(tx, &models.Menu{}, menuID, "菜单不存在"); err != nil {
			return err
		}

		var existing models.GroupPermission
		err := tx.Where("group_id = ? AND menu_id = ?", groupID, menuID).Take(&existing).Error
		switch {
		case err == nil:
			err = tx.Model(&models.GroupPermission{}).
				Where("group_id = ? AND menu_id = ?", groupID, menuID).
				Update("can_view", true).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			err = tx.Create(&models.GroupPermission{
				GroupID:         groupID,
				MenuID:          menuID,
				PermissionFlags: models.PermissionFlags{CanView: true},
			}).Error
		}
		if err != nil {
			return apperrors.Internal("授予菜单失败", err)
		}
		return nil
	})
}

// RevokeMenuFromGroup 撤销组的菜单查看权限。只关闭查看标记，不删除记录，新增/编辑/删除标记原样保留
func (s *PermissionService) RevokeMenuFromGroup(ctx context.Context, groupID, menuID uint) error {
	result := s.db.WithContext(ctx).Model(&models.GroupPermission{}).
		Where("group_id = ? AND menu_id = ?", groupID, menuID).
		Update("can_view", false)
	if result.Error != nil {
		return apperrors.Internal("撤销菜单失败", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("该用户组未分配此菜单")
	}
	return nil
}

// SetGroupMenuPermission 原子地设置组对单个菜单的全部权限标记，其余菜单不受影响
func (s *PermissionService) SetGroupMenuPermission(ctx context.Context, groupID uint, in PermissionInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, &models.Group{}, groupID, "用户组不存在"); err != nil {
			return err
		}
		if err := ensureMenus(tx, []PermissionInput{in}); err != nil {
			return err
		}
		row := models.GroupPermission{GroupID: groupID, MenuID: in.MenuID, PermissionFlags: in.flags()}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "menu_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"can_view", "can_create", "can_edit", "can_delete"}),
		}).Create(&row).Error
		if err != nil {
			return apperrors.Internal("保存组权限失败", err)
		}
		return nil
	})
}

// GroupMenus 组当前可查看的菜单
func (s *PermissionService) GroupMenus(ctx context.Context, groupID uint) ([]models.Menu, error) {
	db := s.db.WithContext(ctx)
	if err := ensureExists(db, &models.Group{}, groupID, "用户组不存在"); err != nil {
		return nil, err
	}
	menus := []models.Menu{}
	err := db.Where("id IN (?)",
		s.db.Model(&models.GroupPermission{}).Select("menu_id").Where("group_id = ? AND can_view = ?", groupID, true)).
		Order("order_index ASC, id ASC").
		Find(&menus).Error
	if err != nil {
		return nil, apperrors.Internal("查询组菜单失败", err)
	}
	return menus, nil
}

// ========== 用户权限 ==========

// GetUserPermissions 获取用户级覆盖权限
func (s *PermissionService) GetUserPermissions(ctx context.Context, userID uint) ([]PermissionView, error) {
	db := s.db.WithContext(ctx)
	if err := ensureExists(db, &models.User{}, userID, "用户不存在"); err != nil {
		return nil, err
	}
	return listPermissions(db, "user_permissions", "user_id", userID)
}

// SetUserPermissions 整体替换用户级权限
func (s *PermissionService) SetUserPermissions(ctx context.Context, userID uint, inputs []PermissionInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, &models.User{}, userID, "用户不存在"); err != nil {
			return err
		}
		if err := ensureMenus(tx, inputs); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserPermission{}).Error; err != nil {
			return apperrors.Internal("清除用户权限失败", err)
		}
		if len(inputs) == 0 {
			return nil
		}
		rows := make([]models.UserPermission, 0, len(inputs))
		for _, in := range inputs {
			rows = append(rows, models.UserPermission{UserID: userID, MenuID: in.MenuID, PermissionFlags: in.flags()})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return apperrors.Internal("保存用户权限失败", err)
		}
		return nil
	})
}

func listPermissions(db *gorm.DB, table, ownerColumn string, ownerID uint) ([]PermissionView, error) {
	views := []PermissionView{}
	err := db.Table(table+" AS p").
		Select("p.menu_id, m.name AS menu_name, m.path AS menu_path, p.can_view, p.can_create, p.can_edit, p.can_delete").
		Joins("JOIN menus m ON m.id = p.menu_id").
		Where("p."+ownerColumn+" = ?", ownerID).
		Order("m.order_index ASC, m.id ASC").
		Scan(&views).Error
	if err != nil {
		return nil, apperrors.Internal("查询权限失败", err)
	}
	return views, nil
}

// ensureMenus 校验菜单存在且不重复
func ensureMenus(tx *gorm.DB, inputs []PermissionInput) error {
	if len(inputs) == 0 {
		return nil
	}
	seen := make(map[uint]struct{}, len(inputs))
	ids := make([]uint, 0, len(inputs))
	for _, in := range inputs {
		if in.MenuID == 0 {
			return apperrors.Validation("菜单ID不能为空")
		}
		if _, dup := seen[in.MenuID]; dup {
			return apperrors.Validation(fmt.Sprintf("菜单ID重复: %d", in.MenuID))
		}
		seen[in.MenuID] = struct{}{}
		ids = append(ids, in.MenuID)
	}

	var count int64
	if err := tx.Model(&models.Menu{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return apperrors.Internal("查询菜单失败", err)
	}
	if count != int64(len(ids)) {
		return apperrors.Validation("存在无效的菜单ID")
	}
	return nil
}

// ensureExists 按主键检查记录是否存在
func ensureExists(db *gorm.DB, model interface{}, id uint, notFound string) error {
	var count int64
	if err := db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return apperrors.Internal("查询失败", err)
	}
	if count == 0 {
		return apperrors.NotFound(notFound)
	}
	return nil
}
