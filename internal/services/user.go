package services

import (
	"context"
	"errors"
	"strings"

	"rbacadmin/internal/models"
	apperrors "rbacadmin/pkg/errors"

	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// UserDetail 用户及其所在组
type UserDetail struct {
	models.User
	Groups []models.Group `json:"groups"`
}

// CreateUserRequest 创建用户参数
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"fullName" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email,max=100"`
	IsAdmin  bool   `json:"isAdmin"`
	GroupIDs []uint `json:"groupIds"`
}

// UpdateUserRequest 更新用户参数，nil表示不修改
type UpdateUserRequest struct {
	FullName *string `json:"fullName" binding:"omitempty,max=100"`
	Email    *string `json:"email" binding:"omitempty,email,max=100"`
	IsActive *bool   `json:"isActive"`
	IsAdmin  *bool   `json:"isAdmin"`
	GroupIDs *[]uint `json:"groupIds"`
}

// ========== 基础CRUD方法 ==========

// Create 创建用户，可同时加入用户组
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if req.Username == "" || req.Password == "" || req.FullName == "" || req.Email == "" {
		return nil, apperrors.Validation("用户名、密码、姓名和邮箱不能为空")
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	user := &models.User{
		Username: req.Username,
		FullName: req.FullName,
		Email:    req.Email,
		IsActive: true,
		IsAdmin:  req.IsAdmin,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, apperrors.Internal("密码加密失败", err)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUserUnique(tx, 0, user.Username, user.Email); err != nil {
			return err
		}
		if err := tx.Create(user).Error; err != nil {
			return apperrors.Internal("创建用户失败", err)
		}
		if len(req.GroupIDs) > 0 {
			return replaceMemberships(tx, user.ID, req.GroupIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetByID 获取用户详情（含所在组）
func (s *UserService) GetByID(ctx context.Context, id uint) (*UserDetail, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.Take(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("用户不存在")
		}
		return nil, apperrors.Internal("查询用户失败", err)
	}

	groups, err := groupsOfUsers(db, []uint{user.ID})
	if err != nil {
		return nil, err
	}
	return &UserDetail{User: user, Groups: nonNilGroups(groups[user.ID])}, nil
}

// List 全部用户（含所在组），按创建顺序
func (s *UserService) List(ctx context.Context) ([]UserDetail, error) {
	db := s.db.WithContext(ctx)

	var users []models.User
	if err := db.Order("id ASC").Find(&users).Error; err != nil {
		return nil, apperrors.Internal("查询用户失败", err)
	}

	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	groups, err := groupsOfUsers(db, ids)
	if err != nil {
		return nil, err
	}

	result := make([]UserDetail, 0, len(users))
	for _, u := range users {
		result = append(result, UserDetail{User: u, Groups: nonNilGroups(groups[u.ID])})
	}
	return result, nil
}

// GetByUsername 根据用户名获取用户
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("用户不存在")
		}
		return nil, apperrors.Internal("查询用户失败", err)
	}
	return &user, nil
}

// Update 更新用户，groupIds存在时整体替换成员关系
func (s *UserService) Update(ctx context.Context, id uint, req UpdateUserRequest) (*UserDetail, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Take(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("用户不存在")
			}
			return apperrors.Internal("查询用户失败", err)
		}

		updates := map[string]interface{}{}
		if req.FullName != nil {
			name := strings.TrimSpace(*req.FullName)
			if name == "" {
				return apperrors.Validation("姓名不能为空")
			}
			updates["full_name"] = name
		}
		if req.Email != nil {
			email := strings.TrimSpace(*req.Email)
			if email == "" {
				return apperrors.Validation("邮箱不能为空")
			}
			if email != user.Email {
				if err := checkUserUnique(tx, user.ID, "", email); err != nil {
					return err
				}
			}
			updates["email"] = email
		}
		if req.IsActive != nil {
			updates["is_active"] = *req.IsActive
		}
		if req.IsAdmin != nil {
			updates["is_admin"] = *req.IsAdmin
		}

		if len(updates) > 0 {
			if err := tx.Model(&user).Updates(updates).Error; err != nil {
				return apperrors.Internal("更新用户失败", err)
			}
		}
		if req.GroupIDs != nil {
			return replaceMemberships(tx, user.ID, *req.GroupIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Delete 删除用户及其成员关系和用户级权限，不能删除自己
func (s *UserService) Delete(ctx context.Context, actorID, id uint) error {
	if actorID == id {
		return apperrors.Validation("不能删除自己的账号")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, &models.User{}, id, "用户不存在"); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Membership{}).Error; err != nil {
			return apperrors.Internal("删除成员关系失败", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.UserPermission{}).Error; err != nil {
			return apperrors.Internal("删除用户权限失败", err)
		}
		if err := tx.Delete(&models.User{}, id).Error; err != nil {
			return apperrors.Internal("删除用户失败", err)
		}
		return nil
	})
}

// ========== 密码管理 ==========

// ResetPassword 管理员重置他人密码，本人须走修改密码流程
func (s *UserService) ResetPassword(ctx context.Context, actorID, targetID uint, newPassword string) error {
	if newPassword == "" {
		return apperrors.Validation("请输入新密码")
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	if actorID == targetID {
		return apperrors.ErrSelfTarget
	}
	return s.setPassword(ctx, targetID, newPassword)
}

// GenerateTempPassword 为他人生成临时密码并返回明文
func (s *UserService) GenerateTempPassword(ctx context.Context, actorID, targetID uint) (string, error) {
	if actorID == targetID {
		return "", apperrors.ErrSelfTarget
	}
	temp, err := GenerateTempPassword(TempPasswordLength)
	if err != nil {
		return "", apperrors.Internal("生成临时密码失败", err)
	}
	if err := s.setPassword(ctx, targetID, temp); err != nil {
		return "", err
	}
	return temp, nil
}

func (s *UserService) setPassword(ctx context.Context, userID uint, password string) error {
	var user models.User
	db := s.db.WithContext(ctx)
	if err := db.Take(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("用户不存在")
		}
		return apperrors.Internal("查询用户失败", err)
	}
	if err := user.SetPassword(password); err != nil {
		return apperrors.Internal("密码加密失败", err)
	}
	if err := db.Model(&user).Update("password", user.PasswordHash).Error; err != nil {
		return apperrors.Internal("保存密码失败", err)
	}
	return nil
}

// ========== 验证相关方法 ==========

// ValidatePassword 验证密码
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperrors.Validation("密码长度不能少于6位")
	}
	return nil
}

// checkUserUnique 用户名/邮箱唯一性检查，空值跳过
func checkUserUnique(tx *gorm.DB, excludeID uint, username, email string) error {
	if username != "" {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ? AND id <> ?", username, excludeID).Count(&count).Error; err != nil {
			return apperrors.Internal("查询用户失败", err)
		}
		if count > 0 {
			return apperrors.Conflict("用户名已存在")
		}
	}
	if email != "" {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ? AND id <> ?", email, excludeID).Count(&count).Error; err != nil {
			return apperrors.Internal("查询用户失败", err)
		}
		if count > 0 {
			return apperrors.Conflict("邮箱已存在")
		}
	}
	return nil
}

// replaceMemberships 整体替换用户所在组
func replaceMemberships(tx *gorm.DB, userID uint, groupIDs []uint) error {
	ids := uniqueIDs(groupIDs)
	if len(ids) > 0 {
		var count int64
		if err := tx.Model(&models.Group{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
			return apperrors.Internal("查询用户组失败", err)
		}
		if count != int64(len(ids)) {
			return apperrors.Validation("存在无效的用户组ID")
		}
	}

	if err := tx.Where("user_id = ?", userID).Delete(&models.Membership{}).Error; err != nil {
		return apperrors.Internal("清除成员关系失败", err)
	}
	if len(ids) == 0 {
		return nil
	}
	rows := make([]models.Membership, 0, len(ids))
	for _, gid := range ids {
		rows = append(rows, models.Membership{UserID: userID, GroupID: gid})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return apperrors.Internal("保存成员关系失败", err)
	}
	return nil
}

// groupsOfUsers 批量查询用户所在组
func groupsOfUsers(db *gorm.DB, userIDs []uint) (map[uint][]models.Group, error) {
	result := make(map[uint][]models.Group, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	type row struct {
		UserID uint
		models.Group
	}
	var rows []row
	err := db.Model(&models.Membership{}).
		Select("user_groups.user_id, groups.id, groups.name, groups.description, groups.created_at, groups.updated_at").
		Joins("JOIN groups ON groups.id = user_groups.group_id").
		Where("user_groups.user_id IN ?", userIDs).
		Order("groups.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Internal("查询用户组失败", err)
	}
	for _, r := range rows {
		result[r.UserID] = append(result[r.UserID], r.Group)
	}
	return result, nil
}

func nonNilGroups(groups []models.Group) []models.Group {
	if groups == nil {
		return []models.Group{}
	}
	return groups
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
