package main

import (
	"context"
	"fmt"
	"time"

	"rbacadmin/internal/services"
	"rbacadmin/pkg/config"
	"rbacadmin/pkg/logger"

	"gorm.io/gorm"
)

// seedData 初始化种子数据
func seedData(db *gorm.DB, cfg config.BootstrapConfig) error {
	if !cfg.SeedDefaults {
		logger.GetLogger().Info("SEED_DEFAULTS=false，跳过种子数据初始化")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := services.NewBootstrapper(db).Seed(ctx, services.AdminAccount{
		Username: cfg.AdminUsername,
		Password: cfg.AdminPassword,
		Email:    cfg.AdminEmail,
		FullName: cfg.AdminFullName,
	})
	if err != nil {
		return fmt.Errorf("初始化种子数据失败: %v", err)
	}
	return nil
}
