package model

import "time"

// User 用户资料，首次登录时创建
type User struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	PhotoURL *string   `json:"photoURL"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

// Clone 深拷贝
func (u User) Clone() User {
	if u.PhotoURL != nil {
		p := *u.PhotoURL
		u.PhotoURL = &p
	}
	return u
}
