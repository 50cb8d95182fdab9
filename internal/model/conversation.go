package model

import "time"

// ConversationType 会话类型
type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

// GeneralChatID 旧版公共频道，消息存放在不带 chatId 的 messages 集合中
const GeneralChatID = "general"

// Conversation 会话，最后一条消息字段为冗余存储
type Conversation struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Participants    []string         `json:"participants"`
	LastMessage     string           `json:"lastMessage"`
	LastMessageTime time.Time        `json:"lastMessageTime"`
	UnreadCount     int              `json:"unreadCount"`
	Type            ConversationType `json:"type"`
}

// HasParticipant 判断用户是否为会话成员
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// IsDirectWith 单聊匹配规则：类型为 direct、恰好两名成员且包含对方
func (c *Conversation) IsDirectWith(otherUserID string) bool {
	return c.Type == ConversationDirect && len(c.Participants) == 2 && c.HasParticipant(otherUserID)
}

// Clone 深拷贝
func (c Conversation) Clone() Conversation {
	c.Participants = append([]string(nil), c.Participants...)
	return c
}
