package models

import (
	"golang.org/x/crypto/bcrypt"
)

// User 用户模型
type User struct {
	BaseModel
	Username     string `json:"username" gorm:"unique;not null;size:50;index"`
	PasswordHash string `json:"-" gorm:"column:password;not null;size:255"`
	FullName     string `json:"fullName" gorm:"not null;size:100"`
	Email        string `json:"email" gorm:"unique;not null;size:100;index"`
	IsActive     bool   `json:"isActive" gorm:"not null"`
	IsAdmin      bool   `json:"isAdmin" gorm:"not null"`
}

// TableName 表名
func (u *User) TableName() string {
	return "users"
}

// SetPassword 设置密码
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword 验证密码
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// UserProfile 对外公开的用户信息
type UserProfile struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"isAdmin"`
}

// Profile 转换为公开信息
func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
		Email:    u.Email,
		IsAdmin:  u.IsAdmin,
	}
}
