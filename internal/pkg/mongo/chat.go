package mongo

import (
	"time"

	"Parley/internal/model"
)

// Chat 会话文档
type Chat struct {
	ID              string                 `bson:"_id"`
	Name            string                 `bson:"name"`
	Participants    []string               `bson:"participants"`
	LastMessage     string                 `bson:"lastMessage"`
	LastMessageTime time.Time              `bson:"lastMessageTime"`
	UnreadCount     int                    `bson:"unreadCount"`
	Type            model.ConversationType `bson:"type"`
}

func (c *Chat) toModel() model.Conversation {
	return model.Conversation{
		ID:              c.ID,
		Name:            c.Name,
		Participants:    c.Participants,
		LastMessage:     c.LastMessage,
		LastMessageTime: c.LastMessageTime,
		UnreadCount:     c.UnreadCount,
		Type:            c.Type,
	}
}

// User 用户资料文档，_id 为身份提供方的 uid
type User struct {
	ID       string    `bson:"_id"`
	Name     string    `bson:"name"`
	Email    string    `bson:"email"`
	PhotoURL *string   `bson:"photoURL"`
	IsOnline bool      `bson:"isOnline"`
	LastSeen time.Time `bson:"lastSeen"`
}

func (u *User) toModel() model.User {
	return model.User{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		PhotoURL: u.PhotoURL,
		IsOnline: u.IsOnline,
		LastSeen: u.LastSeen,
	}
}

// Credential 邮箱密码凭据文档
type Credential struct {
	Email        string  `bson:"email"`
	UserID       string  `bson:"userId"`
	PasswordHash string  `bson:"passwordHash"`
	DisplayName  string  `bson:"displayName"`
	PhotoURL     *string `bson:"photoURL,omitempty"`
}
