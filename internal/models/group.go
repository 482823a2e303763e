package models

import (
	"strings"
	"time"
)

// AdminGroupName 管理员组名称，比较时忽略大小写
const AdminGroupName = "admin"

// Group 用户组
type Group struct {
	BaseModel
	Name        string `json:"name" gorm:"unique;not null;size:100"`
	Description string `json:"description" gorm:"size:255"`
}

func (g *Group) TableName() string {
	return "groups"
}

// IsAdminGroup 是否为管理员组
func (g *Group) IsAdminGroup() bool {
	return strings.EqualFold(g.Name, AdminGroupName)
}

// Membership 用户与组的关联
type Membership struct {
	UserID     uint      `json:"userId" gorm:"primaryKey;autoIncrement:false"`
	GroupID    uint      `json:"groupId" gorm:"primaryKey;autoIncrement:false;index"`
	AssignedAt time.Time `json:"assignedAt" gorm:"autoCreateTime"`
}

func (m *Membership) TableName() string {
	return "user_groups"
}
