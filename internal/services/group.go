package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"rbacadmin/internal/models"
	apperrors "rbacadmin/pkg/errors"

	"gorm.io/gorm"
)

// GroupService 用户组与成员管理
type GroupService struct {
	db *gorm.DB
}

func NewGroupService(db *gorm.DB) *GroupService {
	return &GroupService{db: db}
}

// GroupSummary 列表项
type GroupSummary struct {
	models.Group
	MemberCount int64 `json:"memberCount"`
}

// GroupMember 组成员
type GroupMember struct {
	UserID     uint      `json:"userId"`
	Username   string    `json:"username"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	IsActive   bool      `json:"isActive"`
	AssignedAt time.Time `json:"assignedAt"`
}

// GroupDetail 组详情
type GroupDetail struct {
	models.Group
	Members     []GroupMember    `json:"members"`
	Permissions []PermissionView `json:"permissions"`
}

type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=255"`
}

type UpdateGroupRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=100"`
	Description *string `json:"description" binding:"omitempty,max=255"`
}

// List 全部用户组及成员数
func (s *GroupService) List(ctx context.Context) ([]GroupSummary, error) {
	summaries := []GroupSummary{}
	err := s.db.WithContext(ctx).Model(&models.Group{}).
		Select("groups.*, (SELECT COUNT(*) FROM user_groups WHERE user_groups.group_id = groups.id) AS member_count").
		Order("groups.id ASC").
		Scan(&summaries).Error
	if err != nil {
		return nil, apperrors.Internal("查询用户组失败", err)
	}
	return summaries, nil
}

// GetByID 组详情，包含成员和权限
func (s *GroupService) GetByID(ctx context.Context, id uint) (*GroupDetail, error) {
	db := s.db.WithContext(ctx)

	group, err := s.find(db, id)
	if err != nil {
		return nil, err
	}
	members, err := s.members(db, id)
	if err != nil {
		return nil, err
	}
	perms, err := listPermissions(db, "group_permissions", "group_id", id)
	if err != nil {
		return nil, err
	}
	return &GroupDetail{Group: *group, Members: members, Permissions: perms}, nil
}

// GetByName 按名称查找用户组，忽略大小写
func (s *GroupService) GetByName(ctx context.Context, name string) (*models.Group, error) {
	var group models.Group
	err := s.db.WithContext(ctx).Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).Take(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("用户组不存在")
		}
		return nil, apperrors.Internal("查询用户组失败", err)
	}
	return &group, nil
}

// Create 创建用户组，名称忽略大小写唯一
func (s *GroupService) Create(ctx context.Context, req CreateGroupRequest) (*models.Group, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Validation("用户组名称不能为空")
	}

	group := &models.Group{Name: name, Description: strings.TrimSpace(req.Description)}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkGroupUnique(tx, 0, name); err != nil {
			return err
		}
		if err := tx.Create(group).Error; err != nil {
			return apperrors.Internal("创建用户组失败", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// Update 更新用户组
func (s *GroupService) Update(ctx context.Context, id uint, req UpdateGroupRequest) (*models.Group, error) {
	var group *models.Group
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if group, err = s.find(tx, id); err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return apperrors.Validation("用户组名称不能为空")
			}
			if !strings.EqualFold(name, group.Name) {
				if err := checkGroupUnique(tx, id, name); err != nil {
					return err
				}
			}
			updates["name"] = name
		}
		if req.Description != nil {
			updates["description"] = strings.TrimSpace(*req.Description)
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(group).Updates(updates).Error; err != nil {
			return apperrors.Internal("更新用户组失败", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// Delete 删除用户组及其成员关系和组权限
func (s *GroupService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, &models.Group{}, id, "用户组不存在"); err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", id).Delete(&models.Membership{}).Error; err != nil {
			return apperrors.Internal("删除成员关系失败", err)
		}
		if err := tx.Where("group_id = ?", id).Delete(&models.GroupPermission{}).Error; err != nil {
			return apperrors.Internal("删除组权限失败", err)
		}
		if err := tx.Delete(&models.Group{}, id).Error; err != nil {
			return apperrors.Internal("删除用户组失败", err)
		}
		return nil
	})
}

// ========== 成员管理 ==========

// Members 组成员列表
func (s *GroupService) Members(ctx context.Context, groupID uint) ([]GroupMember, error) {
	db := s.db.WithContext(ctx)
	if err := ensureExists(db, &models.Group{}, groupID, "用户组不存在"); err != nil {
		return nil, err
	}
	return s.members(db, groupID)
}

// AddMember 将用户加入组，重复加入返回冲突
func (s *GroupService) AddMember(ctx context.Context, groupID, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, &models.Group{}, groupID, "用户组不存在"); err != nil {
			return err
		}
		if err := ensureExists(tx, &models.User{}, userID, "用户不存在"); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.Membership{}).Where("user_id = ? AND group_id = ?", userID, groupID).Count(&count).Error; err != nil {
			return apperrors.Internal("查询成员关系失败", err)
		}
		if count > 0 {
			return apperrors.Conflict("用户已在该组中")
		}
		if err := tx.Create(&models.Membership{UserID: userID, GroupID: groupID}).Error; err != nil {
			return apperrors.Internal("添加成员失败", err)
		}
		return nil
	})
}

// RemoveMember 将用户移出组
func (s *GroupService) RemoveMember(ctx context.Context, groupID, userID uint) error {
	result := s.db.WithContext(ctx).Where("user_id = ? AND group_id = ?", userID, groupID).Delete(&models.Membership{})
	if result.Error != nil {
		return apperrors.Internal("移除成员失败", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("该用户不在此组中")
	}
	return nil
}

func (s *GroupService) find(db *gorm.DB, id uint) (*models.Group, error) {
	var group models.Group
	if err := db.Take(&group, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("用户组不存在")
		}
		return nil, apperrors.Internal("查询用户组失败", err)
	}
	return &group, nil
}

func (s *GroupService) members(db *gorm.DB, groupID uint) ([]GroupMember, error) {
	members := []GroupMember{}
	err := db.Model(&models.Membership{}).
		Select("users.id AS user_id, users.username, users.full_name, users.email, users.is_active, user_groups.assigned_at").
		Joins("JOIN users ON users.id = user_groups.user_id").
		Where("user_groups.group_id = ?", groupID).
		Order("users.username ASC").
		Scan(&members).Error
	if err != nil {
		return nil, apperrors.Internal("查询组成员失败", err)
	}
	return members, nil
}

func checkGroupUnique(tx *gorm.DB, excludeID uint, name string) error {
	var count int64
	if err := tx.Model(&models.Group{}).Where("LOWER(name) = ? AND id <> ?", strings.ToLower(name), excludeID).Count(&count).Error; err != nil {
		return apperrors.Internal("查询用户组失败", err)
	}
	if count > 0 {
		return apperrors.Conflict("用户组名称已存在")
	}
	return nil
}
