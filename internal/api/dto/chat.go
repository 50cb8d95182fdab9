package dto

import (
	"time"

	"Parley/internal/model"
)

// SelectChatDTO 切换选中会话，空 chatId 表示取消选中
type SelectChatDTO struct {
	ChatID string `json:"chatId" validate:"omitempty,max=128"`
}

// OpenChatDTO 打开会话并订阅消息
type OpenChatDTO struct {
	ChatID string `json:"chatId" validate:"required,max=128"`
}

// SendMessageDTO 发送消息
type SendMessageDTO struct {
	Text    string `json:"text" validate:"required,max=4000"`
	Type    string `json:"type" validate:"omitempty,oneof=text emoji file"`
	ReplyTo string `json:"replyTo" validate:"omitempty,max=128"`
}

// EditMessageDTO 编辑消息
type EditMessageDTO struct {
	Text string `json:"text" validate:"required,max=4000"`
}

// ReactionDTO 切换表情回应
type ReactionDTO struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
}

// MarkReadDTO 标记已读
type MarkReadDTO struct {
	ChatID string `json:"chatId" validate:"required,max=128"`
}

// DirectChatDTO 查找或创建单聊
type DirectChatDTO struct {
	OtherUserID   string `json:"otherUserId" validate:"required,max=128"`
	OtherUserName string `json:"otherUserName" validate:"omitempty,max=50"`
}

// TypingDTO 输入状态
type TypingDTO struct {
	Typing bool `json:"typing"`
}

// MessageDTO 消息
type MessageDTO struct {
	ID         string              `json:"id"`
	ChatID     string              `json:"chatId"`
	Text       string              `json:"text"`
	SenderID   string              `json:"senderId"`
	SenderName string              `json:"senderName"`
	Timestamp  time.Time           `json:"timestamp"`
	Status     model.MessageStatus `json:"status"`
	Read       bool                `json:"read"`
	Type       model.MessageType   `json:"type"`
	ReplyTo    *model.ReplyRef     `json:"replyTo,omitempty"`
	IsEdited   bool                `json:"isEdited,omitempty"`
	Reactions  model.Reactions     `json:"reactions,omitempty"`
	Pending    bool                `json:"pending,omitempty"`
}

// ConversationDTO 会话
type ConversationDTO struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	Participants    []string               `json:"participants"`
	LastMessage     string                 `json:"lastMessage"`
	LastMessageTime time.Time              `json:"lastMessageTime"`
	UnreadCount     int                    `json:"unreadCount"`
	Type            model.ConversationType `json:"type"`
}

// UnreadDTO 未读计数
type UnreadDTO struct {
	Active int `json:"active"`
	Total  int `json:"total"`
}

// ChatStateDTO 聊天页完整状态
type ChatStateDTO struct {
	ActiveChatID  string             `json:"activeChatId"`
	Active        *ConversationDTO   `json:"active,omitempty"`
	Conversations []*ConversationDTO `json:"conversations"`
	Messages      []*MessageDTO      `json:"messages"`
	TypingUsers   []string           `json:"typingUsers"`
	Unread        UnreadDTO          `json:"unread"`
}
