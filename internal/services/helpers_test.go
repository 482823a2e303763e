package services

import (
	"sync"
	"testing"

	"rbacadmin/internal/audit"
	"rbacadmin/internal/database"
	"rbacadmin/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string, isAdmin bool) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		FullName: username + " test",
		Email:    username + "@example.com",
		IsActive: true,
		IsAdmin:  isAdmin,
	}
	require.NoError(t, user.SetPassword("secret1"))
	require.NoError(t, db.Create(user).Error)
	return user
}

func createGroup(t *testing.T, db *gorm.DB, name string) *models.Group {
	t.Helper()
	group := &models.Group{Name: name}
	require.NoError(t, db.Create(group).Error)
	return group
}

func createMenu(t *testing.T, db *gorm.DB, name, path string, order int) *models.Menu {
	t.Helper()
	menu := &models.Menu{Name: name, Path: path, OrderIndex: order, IsActive: true}
	require.NoError(t, db.Create(menu).Error)
	return menu
}

func addMember(t *testing.T, db *gorm.DB, userID, groupID uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.Membership{UserID: userID, GroupID: groupID}).Error)
}

func grantGroup(t *testing.T, db *gorm.DB, groupID, menuID uint, flags models.PermissionFlags) {
	t.Helper()
	require.NoError(t, db.Create(&models.GroupPermission{GroupID: groupID, MenuID: menuID, PermissionFlags: flags}).Error)
}

func grantUser(t *testing.T, db *gorm.DB, userID, menuID uint, flags models.PermissionFlags) {
	t.Helper()
	require.NoError(t, db.Create(&models.UserPermission{UserID: userID, MenuID: menuID, PermissionFlags: flags}).Error)
}

// captureRecorder 同步收集审计事件
type captureRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *captureRecorder) Record(e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *captureRecorder) Events() []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *captureRecorder) Actions() []models.AuditAction {
	var actions []models.AuditAction
	for _, e := range r.Events() {
		actions = append(actions, e.Action)
	}
	return actions
}
