package services

import (
	"context"
	"errors"
	"strings"

	"rbacadmin/internal/models"
	apperrors "rbacadmin/pkg/errors"

	"gorm.io/gorm"
)

// MenuService 菜单注册表
type MenuService struct {
	db *gorm.DB
}

func NewMenuService(db *gorm.DB) *MenuService {
	return &MenuService{db: db}
}

type CreateMenuRequest struct {
	Name       string `json:"name" binding:"required,max=100"`
	Path       string `json:"path" binding:"required,max=255"`
	Icon       string `json:"icon" binding:"max=100"`
	OrderIndex int    `json:"orderIndex"`
	ParentID   *uint  `json:"parentId"`
	IsActive   *bool  `json:"isActive"`
}

type UpdateMenuRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=100"`
	Path        *string `json:"path" binding:"omitempty,max=255"`
	Icon        *string `json:"icon" binding:"omitempty,max=100"`
	OrderIndex  *int    `json:"orderIndex"`
	ParentID    *uint   `json:"parentId"`
	ClearParent bool    `json:"clearParent"`
	IsActive    *bool   `json:"isActive"`
}

// List 全部菜单（含停用），按顺序
func (s *MenuService) List(ctx context.Context) ([]models.Menu, error) {
	menus := []models.Menu{}
	if err := s.db.WithContext(ctx).Order("order_index ASC, id ASC").Find(&menus).Error; err != nil {
		return nil, apperrors.Internal("查询菜单失败", err)
	}
	return menus, nil
}

// GetByID 获取菜单
func (s *MenuService) GetByID(ctx context.Context, id uint) (*models.Menu, error) {
	return findMenu(s.db.WithContext(ctx), id)
}

// GetByPath 按路径查找菜单
func (s *MenuService) GetByPath(ctx context.Context, path string) (*models.Menu, error) {
	var menu models.Menu
	if err := s.db.WithContext(ctx).Where("path = ?", path).Take(&menu).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("菜单不存在")
		}
		return nil, apperrors.Internal("查询菜单失败", err)
	}
	return &menu, nil
}

// Create 创建菜单，路径唯一
func (s *MenuService) Create(ctx context.Context, req CreateMenuRequest) (*models.Menu, error) {
	menu := &models.Menu{
		Name:       strings.TrimSpace(req.Name),
		Path:       strings.TrimSpace(req.Path),
		Icon:       strings.TrimSpace(req.Icon),
		OrderIndex: req.OrderIndex,
		ParentID:   req.ParentID,
		IsActive:   true,
	}
	if req.IsActive != nil {
		menu.IsActive = *req.IsActive
	}
	if menu.Name == "" || menu.Path == "" {
		return nil, apperrors.Validation("菜单名称和路径不能为空")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkMenuPathUnique(tx, 0, menu.Path); err != nil {
			return err
		}
		if menu.ParentID != nil {
			if err := ensureExists(tx, &models.Menu{}, *menu.ParentID, "上级菜单不存在"); err != nil {
				return asValidation(err)
			}
		}
		if err := tx.Create(menu).Error; err != nil {
			return apperrors.Internal("创建菜单失败", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return menu, nil
}

// Update 更新菜单
func (s *MenuService) Update(ctx context.Context, id uint, req UpdateMenuRequest) (*models.Menu, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		menu, err := findMenu(tx, id)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return apperrors.Validation("菜单名称不能为空")
			}
			updates["name"] = name
		}
		if req.Path != nil {
			path := strings.TrimSpace(*req.Path)
			if path == "" {
				return apperrors.Validation("菜单路径不能为空")
			}
			if path != menu.Path {
				if err := checkMenuPathUnique(tx, id, path); err != nil {
					return err
				}
			}
			updates["path"] = path
		}
		if req.Icon != nil {
			updates["icon"] = strings.TrimSpace(*req.Icon)
		}
		if req.OrderIndex != nil {
			updates["order_index"] = *req.OrderIndex
		}
		if req.IsActive != nil {
			updates["is_active"] = *req.IsActive
		}
		switch {
		case req.ClearParent:
			updates["parent_id"] = nil
		case req.ParentID != nil:
			if *req.ParentID == id {
				return apperrors.Validation("上级菜单不能是自己")
			}
			if err := ensureExists(tx, &models.Menu{}, *req.ParentID, "上级菜单不存在"); err != nil {
				return asValidation(err)
			}
			updates["parent_id"] = *req.ParentID
		}

		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(menu).Updates(updates).Error; err != nil {
			return apperrors.Internal("更新菜单失败", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Delete 删除菜单，同时删除相关权限并解除子菜单的上级引用
func (s *MenuService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, &models.Menu{}, id, "菜单不存在"); err != nil {
			return err
		}
		if err := tx.Where("menu_id = ?", id).Delete(&models.GroupPermission{}).Error; err != nil {
			return apperrors.Internal("删除组权限失败", err)
		}
		if err := tx.Where("menu_id = ?", id).Delete(&models.UserPermission{}).Error; err != nil {
			return apperrors.Internal("删除用户权限失败", err)
		}
		if err := tx.Model(&models.Menu{}).Where("parent_id = ?", id).Update("parent_id", nil).Error; err != nil {
			return apperrors.Internal("更新子菜单失败", err)
		}
		if err := tx.Delete(&models.Menu{}, id).Error; err != nil {
			return apperrors.Internal("删除菜单失败", err)
		}
		return nil
	})
}

func findMenu(db *gorm.DB, id uint) (*models.Menu, error) {
	var menu models.Menu
	if err := db.Take(&menu, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("菜单不存在")
		}
		return nil, apperrors.Internal("查询菜单失败", err)
	}
	return &menu, nil
}

func checkMenuPathUnique(tx *gorm.DB, excludeID uint, path string) error {
	var count int64
	if err := tx.Model(&models.Menu{}).Where("path = ? AND id <> ?", path, excludeID).Count(&count).Error; err != nil {
		return apperrors.Internal("查询菜单失败", err)
	}
	if count > 0 {
		return apperrors.Conflict("菜单路径已存在")
	}
	return nil
}

// asValidation 引用的关联对象不存在属于参数错误
func asValidation(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Kind == apperrors.KindNotFound {
		return apperrors.Validation(appErr.Message)
	}
	return err
}
