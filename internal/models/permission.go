package models

import (
	"fmt"
	"strings"
	"time"
)

// Action 菜单操作
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Actions 全部操作
var Actions = []Action{ActionView, ActionCreate, ActionEdit, ActionDelete}

// ParseAction 解析操作名称
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionView, ActionCreate, ActionEdit, ActionDelete:
		return a, nil
	}
	return "", fmt.Errorf("未知操作: %s", s)
}

// PermissionFlags 四种操作的授权标记
type PermissionFlags struct {
	CanView   bool `json:"canView" gorm:"not null"`
	CanCreate bool `json:"canCreate" gorm:"not null"`
	CanEdit   bool `json:"canEdit" gorm:"not null"`
	CanDelete bool `json:"canDelete" gorm:"not null"`
}

// FullAccess 全部授权
func FullAccess() PermissionFlags {
	return PermissionFlags{CanView: true, CanCreate: true, CanEdit: true, CanDelete: true}
}

// Allows 是否允许指定操作
func (f PermissionFlags) Allows(action Action) bool {
	switch action {
	case ActionView:
		return f.CanView
	case ActionCreate:
		return f.CanCreate
	case ActionEdit:
		return f.CanEdit
	case ActionDelete:
		return f.CanDelete
	}
	return false
}

// GroupPermission 组对菜单的权限
type GroupPermission struct {
	GroupID uint `json:"groupId" gorm:"primaryKey;autoIncrement:false"`
	MenuID  uint `json:"menuId" gorm:"primaryKey;autoIncrement:false;index"`
	PermissionFlags
	GrantedAt time.Time `json:"grantedAt" gorm:"autoCreateTime"`
}

func (p *GroupPermission) TableName() string {
	return "group_permissions"
}

// UserPermission 用户对菜单的权限，存在时覆盖组权限
type UserPermission struct {
	UserID uint `json:"userId" gorm:"primaryKey;autoIncrement:false"`
	MenuID uint `json:"menuId" gorm:"primaryKey;autoIncrement:false;index"`
	PermissionFlags
	GrantedAt time.Time `json:"grantedAt" gorm:"autoCreateTime"`
}

func (p *UserPermission) TableName() string {
	return "user_permissions"
}
