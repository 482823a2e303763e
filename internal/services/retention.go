package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rbacadmin/pkg/logger"

	"github.com/robfig/cron/v3"
)

// RetentionScheduler 按cron表达式定期清理过期审计日志
type RetentionScheduler struct {
	audit   *AuditLogService
	days    int
	spec    string
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewRetentionScheduler 创建审计日志清理调度器
func NewRetentionScheduler(audit *AuditLogService, spec string, days int) *RetentionScheduler {
	if days < 1 {
		days = DefaultAuditRetentionDay
	}
	return &RetentionScheduler{
		audit: audit,
		days:  days,
		spec:  spec,
		cron:  cron.New(),
	}
}

// Start 启动调度器
func (s *RetentionScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("调度器已经在运行")
	}
	if _, err := s.cron.AddFunc(s.spec, s.RunOnce); err != nil {
		return fmt.Errorf("无效的cron表达式 %q: %v", s.spec, err)
	}

	s.cron.Start()
	s.running = true
	logger.GetLogger().Infof("审计日志清理调度器启动成功，cron=%s，保留%d天", s.spec, s.days)
	return nil
}

// Stop 停止调度器并等待正在执行的任务结束
func (s *RetentionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	logger.GetLogger().Info("停止审计日志清理调度器")
	<-s.cron.Stop().Done()
	s.running = false
}

// RunOnce 执行一次清理
func (s *RetentionScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deleted, err := s.audit.PurgeOlderThan(ctx, s.days)
	if err != nil {
		logger.GetLogger().Errorf("清理审计日志失败: %v", err)
		return
	}
	logger.GetLogger().Infof("清理审计日志完成，删除 %d 条（保留%d天）", deleted, s.days)
}
