package services

import (
	"context"
	"errors"
	"fmt"

	"rbacadmin/internal/models"
	"rbacadmin/pkg/logger"

	"gorm.io/gorm"
)

// DefaultGroup 默认用户组
type DefaultGroup struct {
	Name        string
	Description string
}

// DefaultMenu 默认菜单
type DefaultMenu struct {
	Name       string
	Path       string
	Icon       string
	OrderIndex int
}

var DefaultGroups = []DefaultGroup{
	{Name: models.AdminGroupName, Description: "系统管理员组，拥有全部权限"},
	{Name: "checker", Description: "审核组"},
	{Name: "maker", Description: "经办组"},
}

var DefaultMenus = []DefaultMenu{
	{Name: "Dashboard", Path: "/dashboard", Icon: "dashboard", OrderIndex: 1},
	{Name: "User Management", Path: "/users", Icon: "users", OrderIndex: 2},
	{Name: "User Report", Path: "/user-report", Icon: "report", OrderIndex: 3},
	{Name: "Group Management", Path: "/groups", Icon: "groups", OrderIndex: 4},
	{Name: "Group Menus", Path: "/group-menus", Icon: "menu", OrderIndex: 5},
	{Name: "Group Permissions", Path: "/group-permissions", Icon: "lock", OrderIndex: 6},
	{Name: "Group Members", Path: "/group-members", Icon: "user-group", OrderIndex: 7},
	{Name: "Menu Management", Path: "/menus", Icon: "list", OrderIndex: 8},
	{Name: "Audit Logs", Path: "/audit-logs", Icon: "audit", OrderIndex: 9},
	{Name: "Profile", Path: "/profile", Icon: "user", OrderIndex: 10},
	{Name: "Change Password", Path: "/change-password", Icon: "key", OrderIndex: 11},
	{Name: "Menu Usage Report", Path: "/menu-usage-report", Icon: "chart", OrderIndex: 12},
}

// AdminAccount 初始管理员账号
type AdminAccount struct {
	Username string
	Password string
	Email    string
	FullName string
}

// Bootstrapper 初始化默认数据，可重复执行
type Bootstrapper struct {
	db *gorm.DB
}

func NewBootstrapper(db *gorm.DB) *Bootstrapper {
	return &Bootstrapper{db: db}
}

// Seed 依次创建默认组、菜单、管理员组权限和管理员账号
func (b *Bootstrapper) Seed(ctx context.Context, admin AdminAccount) error {
	log := logger.GetLogger()
	log.Info("Starting seed data initialization...")

	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 默认用户组
		if err := seedGroups(tx); err != nil {
			return fmt.Errorf("创建默认用户组失败: %v", err)
		}

		// 2. 默认菜单
		if err := seedMenus(tx); err != nil {
			return fmt.Errorf("创建默认菜单失败: %v", err)
		}

		// 3. 管理员组拥有全部菜单的全部权限
		adminGroup, err := findGroupByName(tx, models.AdminGroupName)
		if err != nil {
			return err
		}
		if err := grantAllMenus(tx, adminGroup.ID); err != nil {
			return fmt.Errorf("初始化管理员组权限失败: %v", err)
		}

		// 4. 管理员账号
		if err := seedAdmin(tx, admin, adminGroup.ID); err != nil {
			return fmt.Errorf("创建默认管理员失败: %v", err)
		}

		log.Info("Seed data initialization completed successfully")
		return nil
	})
}

// InitGroups 仅创建默认用户组
func (b *Bootstrapper) InitGroups(ctx context.Context) error {
	return b.db.WithContext(ctx).Transaction(seedGroups)
}

func seedGroups(tx *gorm.DB) error {
	for _, g := range DefaultGroups {
		var count int64
		if err := tx.Model(&models.Group{}).Where("LOWER(name) = LOWER(?)", g.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := tx.Create(&models.Group{Name: g.Name, Description: g.Description}).Error; err != nil {
			return err
		}
		logger.GetLogger().Infof("默认用户组 %s 创建成功", g.Name)
	}
	return nil
}

func seedMenus(tx *gorm.DB) error {
	for _, m := range DefaultMenus {
		var count int64
		if err := tx.Model(&models.Menu{}).Where("path = ?", m.Path).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		menu := &models.Menu{Name: m.Name, Path: m.Path, Icon: m.Icon, OrderIndex: m.OrderIndex, IsActive: true}
		if err := tx.Create(menu).Error; err != nil {
			return err
		}
	}
	return nil
}

// grantAllMenus 只补充缺失的行，已有权限保持不变
func grantAllMenus(tx *gorm.DB, groupID uint) error {
	var menuIDs []uint
	err := tx.Model(&models.Menu{}).
		Where("id NOT IN (?)", tx.Model(&models.GroupPermission{}).Select("menu_id").Where("group_id = ?", groupID)).
		Pluck("id", &menuIDs).Error
	if err != nil {
		return err
	}
	if len(menuIDs) == 0 {
		return nil
	}
	rows := make([]models.GroupPermission, 0, len(menuIDs))
	for _, id := range menuIDs {
		rows = append(rows, models.GroupPermission{GroupID: groupID, MenuID: id, PermissionFlags: models.FullAccess()})
	}
	return tx.Create(&rows).Error
}

func seedAdmin(tx *gorm.DB, admin AdminAccount, adminGroupID uint) error {
	if admin.Username == "" || admin.Password == "" {
		logger.GetLogger().Warn("未配置管理员账号，跳过创建")
		return nil
	}

	var user models.User
	err := tx.Where("username = ?", admin.Username).Take(&user).Error
	switch {
	case err == nil:
		logger.GetLogger().Info("默认管理员已存在，跳过创建")
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			Username: admin.Username,
			FullName: admin.FullName,
			Email:    admin.Email,
			IsActive: true,
			IsAdmin:  true,
		}
		if err := user.SetPassword(admin.Password); err != nil {
			return err
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		logger.GetLogger().Infof("默认管理员 %s 创建成功", admin.Username)
	default:
		return err
	}

	var count int64
	if err := tx.Model(&models.Membership{}).Where("user_id = ? AND group_id = ?", user.ID, adminGroupID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.Create(&models.Membership{UserID: user.ID, GroupID: adminGroupID}).Error
}

func findGroupByName(tx *gorm.DB, name string) (*models.Group, error) {
	var group models.Group
	if err := tx.Where("LOWER(name) = LOWER(?)", name).Take(&group).Error; err != nil {
		return nil, fmt.Errorf("查询用户组 %s 失败: %v", name, err)
	}
	return &group, nil
}
