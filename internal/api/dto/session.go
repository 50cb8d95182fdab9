package dto

import "time"

// LoginDTO 邮箱密码登录
type LoginDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=64"`
}

// RegisterDTO 邮箱注册
type RegisterDTO struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6,max=64"`
	DisplayName string `json:"displayName" validate:"omitempty,max=50"`
}

// PresenceDTO 在线状态
type PresenceDTO struct {
	Online *bool `json:"online" validate:"required"`
}

// UserDTO 用户资料
type UserDTO struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	PhotoURL *string   `json:"photoURL"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

// SessionDTO 当前会话状态
type SessionDTO struct {
	Authenticated bool     `json:"authenticated"`
	Loading       bool     `json:"loading"`
	User          *UserDTO `json:"user"`
	Error         string   `json:"error,omitempty"`
}
