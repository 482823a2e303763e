package models

// Menu 受权限控制的菜单资源
type Menu struct {
	BaseModel
	Name       string `json:"name" gorm:"not null;size:100"`
	Path       string `json:"path" gorm:"unique;not null;size:255"`
	Icon       string `json:"icon" gorm:"size:100"`
	OrderIndex int    `json:"orderIndex" gorm:"not null;index"`
	ParentID   *uint  `json:"parentId" gorm:"index"`
	IsActive   bool   `json:"isActive" gorm:"not null"`
}

func (m *Menu) TableName() string {
	return "menus"
}
