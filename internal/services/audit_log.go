package services

import (
	"context"
	"strings"
	"time"

	"rbacadmin/internal/models"
	apperrors "rbacadmin/pkg/errors"
	"rbacadmin/pkg/pagination"

	"gorm.io/gorm"
)

const (
	AuditQueryLimit          = 1000
	AuditStatsWindow         = 7 * 24 * time.Hour
	DefaultAuditRetentionDay = 90
	dateLayout               = "2006-01-02"
)

// AuditLogService 审计日志查询与清理
type AuditLogService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAuditLogService(db *gorm.DB) *AuditLogService {
	return &AuditLogService{db: db, now: time.Now}
}

// AuditLogFilter 查询条件，日期为YYYY-MM-DD（UTC，包含当天）
type AuditLogFilter struct {
	Action    string `form:"action"`
	Username  string `form:"username"`
	Resource  string `form:"resource"`
	StartDate string `form:"startDate"`
	EndDate   string `form:"endDate"`

	// Page 为nil时返回整个窗口（最多AuditQueryLimit条）
	Page *pagination.Params `form:"-"`
}

// AuditLogPage 查询结果
type AuditLogPage struct {
	Logs       []models.AuditLogEntry `json:"logs"`
	Total      int                    `json:"total"`
	Pagination *pagination.Info       `json:"pagination,omitempty"`
}

// AuditActionStat 按动作统计
type AuditActionStat struct {
	Action      string `json:"action"`
	Count       int64  `json:"count"`
	UniqueUsers int64  `json:"uniqueUsers"`
}

// Query 按条件查询审计日志，最新的在前
func (s *AuditLogService) Query(ctx context.Context, filter AuditLogFilter) (*AuditLogPage, error) {
	query := s.db.WithContext(ctx).Model(&models.AuditLogEntry{})

	if action := strings.TrimSpace(filter.Action); action != "" {
		query = query.Where("action = ?", action)
	}
	if username := strings.TrimSpace(filter.Username); username != "" {
		query = query.Where("username LIKE ?", "%"+username+"%")
	}
	if resource := strings.TrimSpace(filter.Resource); resource != "" {
		query = query.Where("resource LIKE ?", "%"+resource+"%")
	}
	query, err := applyDateRange(query, "created_at", filter.StartDate, filter.EndDate)
	if err != nil {
		return nil, err
	}

	logs := []models.AuditLogEntry{}
	if filter.Page == nil {
		if err := query.Order("created_at DESC, id DESC").Limit(AuditQueryLimit).Find(&logs).Error; err != nil {
			return nil, apperrors.Internal("查询审计日志失败", err)
		}
		return &AuditLogPage{Logs: logs, Total: len(logs)}, nil
	}

	var matched int64
	if err := query.Session(&gorm.Session{}).Count(&matched).Error; err != nil {
		return nil, apperrors.Internal("查询审计日志失败", err)
	}
	if matched > AuditQueryLimit {
		matched = AuditQueryLimit
	}
	offset, limit := filter.Page.Window(AuditQueryLimit)
	if limit > 0 {
		err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&logs).Error
		if err != nil {
			return nil, apperrors.Internal("查询审计日志失败", err)
		}
	}
	return &AuditLogPage{
		Logs:       logs,
		Total:      int(matched),
		Pagination: pagination.NewInfo(filter.Page, matched),
	}, nil
}

// Stats 最近7天按动作统计次数与去重用户数
func (s *AuditLogService) Stats(ctx context.Context) ([]AuditActionStat, error) {
	since := s.now().UTC().Add(-AuditStatsWindow)
	stats := []AuditActionStat{}
	err := s.db.WithContext(ctx).Model(&models.AuditLogEntry{}).
		Select("action, COUNT(*) AS count, COUNT(DISTINCT user_id) AS unique_users").
		Where("created_at >= ?", since).
		Group("action").
		Order("count DESC, action ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, apperrors.Internal("统计审计日志失败", err)
	}
	return stats, nil
}

// PurgeOlderThan 删除早于now-days的记录，返回删除条数
func (s *AuditLogService) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days < 1 {
		return 0, apperrors.Validation("保留天数必须大于等于1")
	}
	cutoff := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLogEntry{})
	if result.Error != nil {
		return 0, apperrors.Internal("清理审计日志失败", result.Error)
	}
	return result.RowsAffected, nil
}

// applyDateRange 日期过滤：[start 00:00, end+1天 00:00)
func applyDateRange(query *gorm.DB, column, startDate, endDate string) (*gorm.DB, error) {
	if startDate = strings.TrimSpace(startDate); startDate != "" {
		start, err := time.ParseInLocation(dateLayout, startDate, time.UTC)
		if err != nil {
			return nil, apperrors.Validation("开始日期格式错误，应为YYYY-MM-DD")
		}
		query = query.Where(column+" >= ?", start)
	}
	if endDate = strings.TrimSpace(endDate); endDate != "" {
		end, err := time.ParseInLocation(dateLayout, endDate, time.UTC)
		if err != nil {
			return nil, apperrors.Validation("结束日期格式错误，应为YYYY-MM-DD")
		}
		query = query.Where(column+" < ?", end.AddDate(0, 0, 1))
	}
	return query, nil
}
