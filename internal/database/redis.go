package database

import (
	"context"
	"fmt"
	"time"

	"rbacadmin/pkg/config"
	"rbacadmin/pkg/queue"
)

// NewRedisQueue 按配置创建Redis队列并检查连通性
func NewRedisQueue(cfg config.RedisConfig) (*queue.RedisQueue, error) {
	q := queue.NewRedisQueue(&queue.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
		Prefix:   cfg.Prefix,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Ping(ctx); err != nil {
		_ = q.Close()
		return nil, fmt.Errorf("连接Redis失败: %v", err)
	}
	return q, nil
}
