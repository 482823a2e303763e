package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditAction 审计动作
type AuditAction string

const (
	AuditLogin                = AuditAction("LOGIN")
	AuditLoginFailed          = AuditAction("LOGIN_FAILED")
	AuditViewProfile          = AuditAction("VIEW_PROFILE")
	AuditViewMenus            = AuditAction("VIEW_MENUS")
	AuditChangePassword       = AuditAction("CHANGE_PASSWORD")
	AuditChangePasswordFailed = AuditAction("CHANGE_PASSWORD_FAILED")

	AuditViewAll = AuditAction("VIEW_ALL")
	AuditView    = AuditAction("VIEW")
	AuditCreate  = AuditAction("CREATE")
	AuditUpdate  = AuditAction("UPDATE")
	AuditDelete  = AuditAction("DELETE")

	AuditResetPassword        = AuditAction("RESET_PASSWORD")
	AuditGenerateTempPassword = AuditAction("GENERATE_TEMP_PASSWORD")

	AuditViewGroupPermissions   = AuditAction("VIEW_GROUP_PERMISSIONS")
	AuditAssignPermissions      = AuditAction("ASSIGN_PERMISSIONS")
	AuditViewGroupMenus         = AuditAction("VIEW_GROUP_MENUS")
	AuditAddMenuToGroup         = AuditAction("ADD_MENU_TO_GROUP")
	AuditRemoveMenuFromGroup    = AuditAction("REMOVE_MENU_FROM_GROUP")
	AuditViewGroupMembers       = AuditAction("VIEW_GROUP_MEMBERS")
	AuditAddUserToGroup         = AuditAction("ADD_USER_TO_GROUP")
	AuditRemoveUserFromGroup    = AuditAction("REMOVE_USER_FROM_GROUP")
	AuditUpdateGroupPermissions = AuditAction("UPDATE_GROUP_PERMISSIONS")
	AuditViewUserPermissions    = AuditAction("VIEW_USER_PERMISSIONS")
	AuditUpdateUserPermissions  = AuditAction("UPDATE_USER_PERMISSIONS")

	AuditAccessMenu = AuditAction("ACCESS_MENU")
	AuditCleanLogs  = AuditAction("CLEAN_LOGS")
)

var auditActions = map[AuditAction]struct{}{
	AuditLogin: {}, AuditLoginFailed: {}, AuditViewProfile: {}, AuditViewMenus: {},
	AuditChangePassword: {}, AuditChangePasswordFailed: {},
	AuditViewAll: {}, AuditView: {}, AuditCreate: {}, AuditUpdate: {}, AuditDelete: {},
	AuditResetPassword: {}, AuditGenerateTempPassword: {},
	AuditViewGroupPermissions: {}, AuditAssignPermissions: {}, AuditViewGroupMenus: {},
	AuditAddMenuToGroup: {}, AuditRemoveMenuFromGroup: {}, AuditViewGroupMembers: {},
	AuditAddUserToGroup: {}, AuditRemoveUserFromGroup: {}, AuditUpdateGroupPermissions: {},
	AuditViewUserPermissions: {}, AuditUpdateUserPermissions: {},
	AuditAccessMenu: {}, AuditCleanLogs: {},
}

// Valid 是否为已定义的动作
func (a AuditAction) Valid() bool {
	_, ok := auditActions[a]
	return ok
}

// AuditResource 审计资源类型
type AuditResource string

const (
	ResourceAuth        = AuditResource("AUTH")
	ResourceUser        = AuditResource("USER")
	ResourceUsers       = AuditResource("USERS")
	ResourceGroup       = AuditResource("GROUP")
	ResourceGroups      = AuditResource("GROUPS")
	ResourceMenu        = AuditResource("MENU")
	ResourceMenus       = AuditResource("MENUS")
	ResourcePermissions = AuditResource("PERMISSIONS")
	ResourceAudit       = AuditResource("AUDIT")
	ResourceMenuUsage   = AuditResource("MENU_USAGE")
)

// Valid 是否为已定义的资源类型
func (r AuditResource) Valid() bool {
	switch r {
	case ResourceAuth, ResourceUser, ResourceUsers, ResourceGroup, ResourceGroups,
		ResourceMenu, ResourceMenus, ResourcePermissions, ResourceAudit, ResourceMenuUsage:
		return true
	}
	return false
}

// AuditLogEntry 审计日志，只追加不修改
type AuditLogEntry struct {
	ID         uint           `json:"id" gorm:"primarykey"`
	UserID     *uint          `json:"userId" gorm:"index"`
	Username   string         `json:"username" gorm:"size:100;index"`
	Action     AuditAction    `json:"action" gorm:"size:50;not null;index"`
	Resource   AuditResource  `json:"resource" gorm:"size:50;not null;index"`
	ResourceID *string        `json:"resourceId" gorm:"size:100"`
	IPAddress  string         `json:"ipAddress" gorm:"size:64"`
	UserAgent  string         `json:"userAgent" gorm:"type:text"`
	Details    datatypes.JSON `json:"details"`
	CreatedAt  time.Time      `json:"createdAt" gorm:"index"`
}

func (a *AuditLogEntry) TableName() string {
	return "audit_logs"
}
