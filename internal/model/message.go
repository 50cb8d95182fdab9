package model

import "time"

// MessageStatus 投递状态，只允许 sending -> sent -> read 单向推进
type MessageStatus string

const (
	StatusSending MessageStatus = "sending"
	StatusSent    MessageStatus = "sent"
	StatusRead    MessageStatus = "read"
)

// Rank 状态序号，用于防止状态回退
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSending:
		return 0
	case StatusSent:
		return 1
	case StatusRead:
		return 2
	}
	return -1
}

// MessageType 消息内容类型
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageEmoji MessageType = "emoji"
	MessageFile  MessageType = "file"
)

// Valid 是否为已知的内容类型
func (t MessageType) Valid() bool {
	return t == MessageText || t == MessageEmoji || t == MessageFile
}

// ReplyRef 被回复消息的快照，回复时冻结，之后不随原消息编辑同步
type ReplyRef struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	DisplayName string `json:"displayName"`
}

// Reactions emoji -> (reactor uid -> marker)
type Reactions map[string]map[string]string

// Message 消息明细
type Message struct {
	ID         string        `json:"id"`
	ChatID     string        `json:"chatId"`
	Text       string        `json:"text"`
	SenderID   string        `json:"senderId"`
	SenderName string        `json:"senderName"`
	Timestamp  time.Time     `json:"timestamp"`
	Status     MessageStatus `json:"status"`
	Read       bool          `json:"read"`
	Type       MessageType   `json:"type"`
	ReplyTo    *ReplyRef     `json:"replyTo,omitempty"`
	IsEdited   bool          `json:"isEdited,omitempty"`
	Reactions  Reactions     `json:"reactions,omitempty"`

	// Pending 本地乐观插入的条目，ID 为客户端临时 ID
	Pending bool `json:"pending,omitempty"`
}

// Clone 深拷贝，回复快照与 reactions 不与原消息共享
func (m Message) Clone() Message {
	if m.ReplyTo != nil {
		r := *m.ReplyTo
		m.ReplyTo = &r
	}
	if m.Reactions != nil {
		reactions := make(Reactions, len(m.Reactions))
		for emoji, users := range m.Reactions {
			inner := make(map[string]string, len(users))
			for uid, marker := range users {
				inner[uid] = marker
			}
			reactions[emoji] = inner
		}
		m.Reactions = reactions
	}
	return m
}
