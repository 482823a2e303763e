package services

import (
	"context"
	"testing"

	"rbacadmin/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	boot := NewBootstrapper(db)
	ctx := context.Background()
	admin := AdminAccount{Username: "admin", Password: "admin123", Email: "admin@example.com", FullName: "Administrator"}

	require.NoError(t, boot.Seed(ctx, admin))
	require.NoError(t, boot.Seed(ctx, admin))

	var groups, menus, grants, memberships int64
	require.NoError(t, db.Model(&models.Group{}).Count(&groups).Error)
	require.NoError(t, db.Model(&models.Menu{}).Count(&menus).Error)
	require.NoError(t, db.Model(&models.GroupPermission{}).Count(&grants).Error)
	require.NoError(t, db.Model(&models.Membership{}).Count(&memberships).Error)
	assert.EqualValues(t, len(DefaultGroups), groups)
	assert.EqualValues(t, len(DefaultMenus), menus)
	assert.EqualValues(t, len(DefaultMenus), grants)
	assert.EqualValues(t, 1, memberships)

	var user models.User
	require.NoError(t, db.Where("username = ?", "admin").Take(&user).Error)
	assert.True(t, user.IsAdmin)
	assert.True(t, user.CheckPassword("admin123"))

	ok, err := NewAuthorizationService(db).IsAdminGroupMember(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSeedKeepsExistingGrantsAndCoversNewMenus(t *testing.T) {
	db := newTestDB(t)
	boot := NewBootstrapper(db)
	ctx := context.Background()

	require.NoError(t, boot.Seed(ctx, AdminAccount{}))

	var adminGroup models.Group
	require.NoError(t, db.Where("name = ?", models.AdminGroupName).Take(&adminGroup).Error)
	require.NoError(t, db.Model(&models.GroupPermission{}).
		Where("group_id = ?", adminGroup.ID).
		Update("can_delete", false).Error)
	extra := createMenu(t, db, "Extra", "/extra", 99)

	require.NoError(t, boot.Seed(ctx, AdminAccount{}))

	var row models.GroupPermission
	require.NoError(t, db.Where("group_id = ? AND menu_id = ?", adminGroup.ID, extra.ID).Take(&row).Error)
	assert.Equal(t, models.FullAccess(), row.PermissionFlags)

	var stillDenied int64
	require.NoError(t, db.Model(&models.GroupPermission{}).Where("group_id = ? AND can_delete = ?", adminGroup.ID, false).Count(&stillDenied).Error)
	assert.EqualValues(t, len(DefaultMenus), stillDenied)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, users)
}
