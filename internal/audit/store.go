package audit

import (
	"context"

	"rbacadmin/internal/models"

	"gorm.io/gorm"
)

// Sink 审计事件的落地位置
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// Publisher 审计记录持久化后的通知对象
type Publisher interface {
	Publish(entry *models.AuditLogEntry)
}

// GormStore 将审计事件写入数据库
type GormStore struct {
	db        *gorm.DB
	publisher Publisher
}

func NewGormStore(db *gorm.DB, publisher Publisher) *GormStore {
	return &GormStore{db: db, publisher: publisher}
}

// Write 写入一条审计记录
func (s *GormStore) Write(ctx context.Context, e Event) error {
	entry, err := e.ToEntry()
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}
	if s.publisher != nil {
		s.publisher.Publish(entry)
	}
	return nil
}
