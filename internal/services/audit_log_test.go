package services

import (
	"context"
	"testing"
	"time"

	"rbacadmin/internal/models"
	apperrors "rbacadmin/pkg/errors"
	"rbacadmin/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func insertAudit(t *testing.T, db *gorm.DB, userID uint, username string, action models.AuditAction, resource models.AuditResource, at time.Time) {
	t.Helper()
	uid := userID
	entry := &models.AuditLogEntry{
		UserID:    &uid,
		Username:  username,
		Action:    action,
		Resource:  resource,
		UserAgent: "Unknown",
		Details:   []byte(`{}`),
		CreatedAt: at,
	}
	require.NoError(t, db.Create(entry).Error)
}

func fixedAuditService(db *gorm.DB, now time.Time) *AuditLogService {
	svc := NewAuditLogService(db)
	svc.now = func() time.Time { return now }
	return svc
}

func TestAuditQueryFilters(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuditLogService(db)
	ctx := context.Background()

	day := func(d, h int) time.Time { return time.Date(2024, 3, d, h, 0, 0, 0, time.UTC) }
	insertAudit(t, db, 1, "alice", models.AuditLogin, models.ResourceAuth, day(1, 8))
	insertAudit(t, db, 2, "bob", models.AuditLogin, models.ResourceAuth, day(2, 23))
	insertAudit(t, db, 1, "alice", models.AuditCreate, models.ResourceUsers, day(3, 0))
	insertAudit(t, db, 3, "malice", models.AuditDelete, models.ResourceGroups, day(4, 12))

	page, err := svc.Query(ctx, AuditLogFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, "malice", page.Logs[0].Username, "newest first")

	page, err = svc.Query(ctx, AuditLogFilter{Action: "LOGIN"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = svc.Query(ctx, AuditLogFilter{Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total, "username is a substring match")

	page, err = svc.Query(ctx, AuditLogFilter{Resource: "GROUP"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	page, err = svc.Query(ctx, AuditLogFilter{StartDate: "2024-03-02", EndDate: "2024-03-02"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total, "end date is inclusive for the whole day")
	assert.Equal(t, "bob", page.Logs[0].Username)

	_, err = svc.Query(ctx, AuditLogFilter{StartDate: "03/02/2024"})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestAuditQueryPaging(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuditLogService(db)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		insertAudit(t, db, 1, "alice", models.AuditLogin, models.ResourceAuth, base.Add(time.Duration(i)*time.Hour))
	}

	page, err := svc.Query(ctx, AuditLogFilter{Page: pagination.Normalize(2, 2)})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Logs, 2)
	assert.Equal(t, base.Add(2*time.Hour), page.Logs[0].CreatedAt.UTC())
	require.NotNil(t, page.Pagination)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.True(t, page.Pagination.HasNext)

	page, err = svc.Query(ctx, AuditLogFilter{Page: pagination.Normalize(4, 2)})
	require.NoError(t, err)
	assert.Empty(t, page.Logs)
	assert.False(t, page.Pagination.HasNext)
}

func TestAuditStatsCoversLastSevenDays(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := fixedAuditService(db, now)

	insertAudit(t, db, 1, "alice", models.AuditLogin, models.ResourceAuth, now.Add(-time.Hour))
	insertAudit(t, db, 1, "alice", models.AuditLogin, models.ResourceAuth, now.Add(-2*time.Hour))
	insertAudit(t, db, 2, "bob", models.AuditLogin, models.ResourceAuth, now.Add(-3*time.Hour))
	insertAudit(t, db, 2, "bob", models.AuditDelete, models.ResourceUsers, now.Add(-24*time.Hour))
	insertAudit(t, db, 2, "bob", models.AuditDelete, models.ResourceUsers, now.Add(-8*24*time.Hour))

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, AuditActionStat{Action: "LOGIN", Count: 3, UniqueUsers: 2}, stats[0])
	assert.Equal(t, AuditActionStat{Action: "DELETE", Count: 1, UniqueUsers: 1}, stats[1])
}

func TestPurgeDeletesOnlyOlderEntries(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := fixedAuditService(db, now)
	ctx := context.Background()

	insertAudit(t, db, 1, "alice", models.AuditLogin, models.ResourceAuth, now.AddDate(0, 0, -40))
	insertAudit(t, db, 1, "alice", models.AuditLogin, models.ResourceAuth, now.AddDate(0, 0, -31))
	insertAudit(t, db, 1, "alice", models.AuditLogin, models.ResourceAuth, now.AddDate(0, 0, -29))
	insertAudit(t, db, 1, "alice", models.AuditLogin, models.ResourceAuth, now.Add(-time.Minute))

	_, err := svc.PurgeOlderThan(ctx, 0)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	deleted, err := svc.PurgeOlderThan(ctx, 30)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	var remaining []models.AuditLogEntry
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 2)
	cutoff := now.AddDate(0, 0, -30)
	for _, e := range remaining {
		assert.False(t, e.CreatedAt.Before(cutoff))
	}
}

func TestRetentionSchedulerRunOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuditLogService(db)
	insertAudit(t, db, 1, "alice", models.AuditLogin, models.ResourceAuth, time.Now().UTC().AddDate(0, 0, -100))
	insertAudit(t, db, 1, "alice", models.AuditLogin, models.ResourceAuth, time.Now().UTC())

	scheduler := NewRetentionScheduler(svc, "@daily", 0)
	scheduler.RunOnce()

	var count int64
	require.NoError(t, db.Model(&models.AuditLogEntry{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	require.NoError(t, scheduler.Start())
	assert.Error(t, scheduler.Start())
	scheduler.Stop()

	assert.Error(t, NewRetentionScheduler(svc, "not a cron", 30).Start())
}
