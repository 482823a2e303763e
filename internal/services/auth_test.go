package services

import (
	"context"
	"testing"
	"time"

	"rbacadmin/internal/models"
	apperrors "rbacadmin/pkg/errors"
	"rbacadmin/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key"

func newSessionService(t *testing.T, db *gorm.DB) (*SessionService, *captureRecorder) {
	t.Helper()
	rec := &captureRecorder{}
	manager := jwt.NewJWTManager(testSecret, 0, "RBAC-ADMIN")
	return NewSessionService(db, manager, NewAuthorizationService(db), rec), rec
}

var testMeta = ClientMeta{
	IPAddress:    "10.1.2.3",
	UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0 Safari/537.36",
	ComputerName: "WS-042",
}

func TestAuthenticateSuccessIssuesEightHourTokenAndOneAudit(t *testing.T) {
	db := newTestDB(t)
	sessions, rec := newSessionService(t, db)

	u := createUser(t, db, "alice", false)
	g := createGroup(t, db, "maker")
	dash := createMenu(t, db, "Dashboard", "/dashboard", 1)
	createMenu(t, db, "Secret", "/secret", 2)
	addMember(t, db, u.ID, g.ID)
	grantGroup(t, db, g.ID, dash.ID, models.PermissionFlags{CanView: true})

	issued, err := sessions.Authenticate(context.Background(), "alice", "secret1", testMeta)
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour, issued.ExpiresAt.Sub(issued.IssuedAt))
	assert.Equal(t, "alice", issued.User.Username)
	assert.Equal(t, []string{"/dashboard"}, menuPaths(issued.Menus))

	identity, err := sessions.Verify(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, identity.UserID)
	assert.False(t, identity.IsAdmin)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.AuditLogin, events[0].Action)
	assert.Equal(t, models.ResourceAuth, events[0].Resource)
	assert.Equal(t, u.ID, *events[0].UserID)
	assert.Equal(t, "10.1.2.3", events[0].IPAddress)
	assert.Equal(t, "Chrome", events[0].Details["browser"])
	assert.Equal(t, "WS-042", events[0].Details["computerName"])
}

func TestAuthenticateFailuresRecordExactlyOneLoginFailed(t *testing.T) {
	db := newTestDB(t)
	createUser(t, db, "bob", false)
	inactive := createUser(t, db, "gone", false)
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)

	cases := []struct {
		name     string
		username string
		password string
		kind     apperrors.Kind
		audited  string
	}{
		{"wrong password", "bob", "nope", apperrors.KindAuthentication, "bob"},
		{"unknown user", "nobody", "secret1", apperrors.KindAuthentication, "nobody"},
		{"inactive user", "gone", "secret1", apperrors.KindAuthentication, "gone"},
		{"missing fields", "", "", apperrors.KindValidation, "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sessions, rec := newSessionService(t, db)
			_, err := sessions.Authenticate(context.Background(), tc.username, tc.password, testMeta)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperrors.KindOf(err))

			events := rec.Events()
			require.Len(t, events, 1)
			assert.Equal(t, models.AuditLoginFailed, events[0].Action)
			assert.Equal(t, tc.audited, events[0].Username)
		})
	}
}

func TestAuthenticateUsesSameMessageForUnknownUserAndBadPassword(t *testing.T) {
	db := newTestDB(t)
	sessions, _ := newSessionService(t, db)
	createUser(t, db, "bob", false)

	_, errUnknown := sessions.Authenticate(context.Background(), "nobody", "x", testMeta)
	_, errBad := sessions.Authenticate(context.Background(), "bob", "x", testMeta)
	assert.ErrorIs(t, errUnknown, apperrors.ErrInvalidCredentials)
	assert.ErrorIs(t, errBad, apperrors.ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errBad.Error())
}

func TestVerifyRejectsTamperedAndExpiredTokens(t *testing.T) {
	db := newTestDB(t)
	sessions, _ := newSessionService(t, db)

	_, err := sessions.Verify("")
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalidOrExpired)
	_, err = sessions.Verify("not.a.token")
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalidOrExpired)

	past := jwt.NewJWTManager(testSecret, time.Hour, "RBAC-ADMIN").
		WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	token, _, _, err := past.GenerateToken(1, "old", false)
	require.NoError(t, err)
	_, err = sessions.Verify(token)
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalidOrExpired)
}

func TestChangePasswordValidationOrder(t *testing.T) {
	db := newTestDB(t)
	sessions, rec := newSessionService(t, db)
	u := createUser(t, db, "carol", false)
	actor := Identity{UserID: u.ID, Username: u.Username}
	ctx := context.Background()

	cases := []struct {
		name string
		req  ChangePasswordRequest
		kind apperrors.Kind
	}{
		{"missing", ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "abcdef"}, apperrors.KindValidation},
		{"mismatch", ChangePasswordRequest{"secret1", "abcdef", "abcdeg"}, apperrors.KindValidation},
		{"too short", ChangePasswordRequest{"secret1", "abc", "abc"}, apperrors.KindValidation},
		{"unchanged", ChangePasswordRequest{"secret1", "secret1", "secret1"}, apperrors.KindValidation},
		{"wrong current", ChangePasswordRequest{"wrong1", "abcdef", "abcdef"}, apperrors.KindAuthentication},
	}
	for _, tc := range cases {
		err := sessions.ChangePassword(ctx, actor, tc.req, testMeta)
		assert.Equal(t, tc.kind, apperrors.KindOf(err), tc.name)
	}
	require.Len(t, rec.Actions(), len(cases), "every rejected call is audited once")
	for _, a := range rec.Actions() {
		assert.Equal(t, models.AuditChangePasswordFailed, a)
	}

	require.NoError(t, sessions.ChangePassword(ctx, actor, ChangePasswordRequest{"secret1", "newpass1", "newpass1"}, testMeta))
	assert.Equal(t, models.AuditChangePassword, rec.Actions()[len(cases)])

	_, err := sessions.Authenticate(ctx, "carol", "newpass1", testMeta)
	require.NoError(t, err)
}

func TestChangePasswordFailuresRecordReasonAndStatus(t *testing.T) {
	db := newTestDB(t)
	sessions, rec := newSessionService(t, db)
	u := createUser(t, db, "erin", false)
	actor := Identity{UserID: u.ID, Username: u.Username}
	ctx := context.Background()

	_ = sessions.ChangePassword(ctx, actor, ChangePasswordRequest{"secret1", "abcdef", "abcdeg"}, testMeta)
	_ = sessions.ChangePassword(ctx, actor, ChangePasswordRequest{"secret1", "abc", "abc"}, testMeta)
	_ = sessions.ChangePassword(ctx, actor, ChangePasswordRequest{"secret1", "secret1", "secret1"}, testMeta)
	_ = sessions.ChangePassword(ctx, actor, ChangePasswordRequest{"wrong1", "abcdef", "abcdef"}, testMeta)

	events := rec.Events()
	require.Len(t, events, 4)
	wants := []struct {
		reason string
		status int
	}{
		{"mismatch", 400},
		{"too_short", 400},
		{"same_as_current", 400},
		{"wrong_current_password", 401},
	}
	for i, want := range wants {
		e := events[i]
		assert.Equal(t, models.AuditChangePasswordFailed, e.Action)
		assert.Equal(t, models.ResourceAuth, e.Resource)
		assert.Equal(t, "erin", e.Username)
		require.NotNil(t, e.UserID)
		assert.Equal(t, u.ID, *e.UserID)
		assert.Equal(t, want.reason, e.Details["reason"])
		assert.Equal(t, want.status, e.Details["statusCode"])
	}
}

func TestSelfResetFailsWhileChangePasswordSucceeds(t *testing.T) {
	db := newTestDB(t)
	sessions, _ := newSessionService(t, db)
	users := NewUserService(db)
	admin := createUser(t, db, "root", true)
	ctx := context.Background()

	err := users.ResetPassword(ctx, admin.ID, admin.ID, "another1")
	assert.ErrorIs(t, err, apperrors.ErrSelfTarget)

	err = sessions.ChangePassword(ctx, Identity{UserID: admin.ID, Username: "root", IsAdmin: true},
		ChangePasswordRequest{"secret1", "another1", "another1"}, testMeta)
	require.NoError(t, err)
}
