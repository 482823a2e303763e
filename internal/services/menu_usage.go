package services

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"rbacadmin/internal/audit"
	"rbacadmin/internal/models"
	apperrors "rbacadmin/pkg/errors"

	"gorm.io/gorm"
)

// MenuUsageService 菜单访问记录与统计，数据来源于ACCESS_MENU审计记录
type MenuUsageService struct {
	db    *gorm.DB
	store audit.Sink
}

func NewMenuUsageService(db *gorm.DB, store audit.Sink) *MenuUsageService {
	if store == nil {
		store = audit.NewGormStore(db, nil)
	}
	return &MenuUsageService{db: db, store: store}
}

type MenuAccessRequest struct {
	MenuID   uint   `json:"menuId" binding:"required"`
	MenuPath string `json:"menuPath" binding:"required"`
	MenuName string `json:"menuName" binding:"required"`
}

// MenuUsageRecord 报表中的一次访问
type MenuUsageRecord struct {
	ID           uint      `json:"id"`
	UserID       *uint     `json:"userId"`
	Username     string    `json:"username"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	MenuID       string    `json:"menuId"`
	MenuPath     string    `json:"menuPath"`
	MenuName     string    `json:"menuName"`
	ComputerName string    `json:"computerName"`
	Browser      string    `json:"browser"`
	OS           string    `json:"os"`
	IPAddress    string    `json:"ipAddress"`
	AccessedAt   time.Time `json:"accessedAt"`
}

// MenuUsageByMenu 按菜单汇总
type MenuUsageByMenu struct {
	MenuID      string    `json:"menuId"`
	MenuName    string    `json:"menuName"`
	AccessCount int64     `json:"accessCount"`
	UniqueUsers int64     `json:"uniqueUsers"`
	LastAccess  time.Time `json:"lastAccess"`
}

// MenuUsageByUser 按用户汇总
type MenuUsageByUser struct {
	UserID      uint      `json:"userId"`
	Username    string    `json:"username"`
	FullName    string    `json:"fullName"`
	TotalAccess int64     `json:"totalAccess"`
	UniqueMenus int64     `json:"uniqueMenus"`
	LastAccess  time.Time `json:"lastAccess"`
}

// Log 同步写入一条菜单访问记录
func (s *MenuUsageService) Log(ctx context.Context, actor Identity, req MenuAccessRequest, meta ClientMeta) error {
	req.MenuPath = strings.TrimSpace(req.MenuPath)
	req.MenuName = strings.TrimSpace(req.MenuName)
	if req.MenuID == 0 || req.MenuPath == "" || req.MenuName == "" {
		return apperrors.Validation("缺少必要参数：menuId、menuPath、menuName")
	}

	userID := actor.UserID
	event := meta.event(&userID, actor.Username, models.AuditAccessMenu, models.ResourceMenuUsage, map[string]interface{}{
		"menuPath": req.MenuPath,
		"menuName": req.MenuName,
	})
	delete(event.Details, "requestId")
	menuID := strconv.FormatUint(uint64(req.MenuID), 10)
	event.ResourceID = &menuID

	if err := s.store.Write(ctx, event); err != nil {
		return apperrors.Internal("记录菜单访问失败", err)
	}
	return nil
}

// Report 访问明细，最新的在前
func (s *MenuUsageService) Report(ctx context.Context, startDate, endDate string) ([]MenuUsageRecord, error) {
	rows, err := s.accessRows(ctx, startDate, endDate, AuditQueryLimit)
	if err != nil {
		return nil, err
	}
	records := make([]MenuUsageRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return records, nil
}

// MenuSummary 按菜单汇总，访问次数多的在前
func (s *MenuUsageService) MenuSummary(ctx context.Context) ([]MenuUsageByMenu, error) {
	rows, err := s.accessRows(ctx, "", "", 0)
	if err != nil {
		return nil, err
	}

	byMenu := map[string]*MenuUsageByMenu{}
	users := map[string]map[uint]struct{}{}
	for _, r := range rows {
		rec := r.record()
		sum, ok := byMenu[rec.MenuID]
		if !ok {
			sum = &MenuUsageByMenu{MenuID: rec.MenuID, MenuName: rec.MenuName}
			byMenu[rec.MenuID] = sum
			users[rec.MenuID] = map[uint]struct{}{}
		}
		sum.AccessCount++
		if rec.UserID != nil {
			users[rec.MenuID][*rec.UserID] = struct{}{}
		}
		if rec.AccessedAt.After(sum.LastAccess) {
			sum.LastAccess = rec.AccessedAt
			if rec.MenuName != "" {
				sum.MenuName = rec.MenuName
			}
		}
	}

	result := make([]MenuUsageByMenu, 0, len(byMenu))
	for id, sum := range byMenu {
		sum.UniqueUsers = int64(len(users[id]))
		result = append(result, *sum)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].AccessCount != result[j].AccessCount {
			return result[i].AccessCount > result[j].AccessCount
		}
		return result[i].MenuID < result[j].MenuID
	})
	return result, nil
}

// UserSummary 按用户汇总，访问次数多的在前
func (s *MenuUsageService) UserSummary(ctx context.Context) ([]MenuUsageByUser, error) {
	rows, err := s.accessRows(ctx, "", "", 0)
	if err != nil {
		return nil, err
	}

	byUser := map[uint]*MenuUsageByUser{}
	menus := map[uint]map[string]struct{}{}
	for _, r := range rows {
		if r.UserID == nil {
			continue
		}
		uid := *r.UserID
		sum, ok := byUser[uid]
		if !ok {
			sum = &MenuUsageByUser{UserID: uid, Username: r.Username, FullName: r.FullName}
			byUser[uid] = sum
			menus[uid] = map[string]struct{}{}
		}
		sum.TotalAccess++
		if r.ResourceID != nil {
			menus[uid][*r.ResourceID] = struct{}{}
		}
		if r.CreatedAt.After(sum.LastAccess) {
			sum.LastAccess = r.CreatedAt
		}
	}

	result := make([]MenuUsageByUser, 0, len(byUser))
	for uid, sum := range byUser {
		sum.UniqueMenus = int64(len(menus[uid]))
		result = append(result, *sum)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalAccess != result[j].TotalAccess {
			return result[i].TotalAccess > result[j].TotalAccess
		}
		return result[i].UserID < result[j].UserID
	})
	return result, nil
}

type accessRow struct {
	models.AuditLogEntry
	FullName string
	Email    string
}

func (r accessRow) record() MenuUsageRecord {
	var details map[string]interface{}
	if len(r.Details) > 0 {
		_ = json.Unmarshal(r.Details, &details)
	}
	str := func(key string) string {
		if v, ok := details[key].(string); ok {
			return v
		}
		return ""
	}
	rec := MenuUsageRecord{
		ID:           r.ID,
		UserID:       r.UserID,
		Username:     r.Username,
		FullName:     r.FullName,
		Email:        r.Email,
		MenuPath:     str("menuPath"),
		MenuName:     str("menuName"),
		ComputerName: str("computerName"),
		Browser:      str("browser"),
		OS:           str("os"),
		IPAddress:    r.IPAddress,
		AccessedAt:   r.CreatedAt,
	}
	if r.ResourceID != nil {
		rec.MenuID = *r.ResourceID
	}
	return rec
}

func (s *MenuUsageService) accessRows(ctx context.Context, startDate, endDate string, limit int) ([]accessRow, error) {
	query := s.db.WithContext(ctx).Table("audit_logs").
		Select("audit_logs.*, users.full_name, users.email").
		Joins("LEFT JOIN users ON users.id = audit_logs.user_id").
		Where("audit_logs.action = ?", models.AuditAccessMenu)
	query, err := applyDateRange(query, "audit_logs.created_at", startDate, endDate)
	if err != nil {
		return nil, err
	}
	query = query.Order("audit_logs.created_at DESC, audit_logs.id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	rows := []accessRow{}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, apperrors.Internal("查询菜单访问记录失败", err)
	}
	return rows, nil
}
