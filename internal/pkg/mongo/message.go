package mongo

import (
	"time"

	"Parley/internal/model"
)

// Message 会话消息文档
type Message struct {
	ID         string              `bson:"_id"`
	ChatID     string              `bson:"chatId"`
	Text       string              `bson:"text"`
	SenderID   string              `bson:"senderId"`
	SenderName string              `bson:"senderName"`
	Timestamp  time.Time           `bson:"timestamp"`
	Status     model.MessageStatus `bson:"status"`
	Read       bool                `bson:"read"`
	Type       model.MessageType   `bson:"type"`
	ReplyTo    *ReplyRef           `bson:"replyTo,omitempty"`
	IsEdited   bool                `bson:"isEdited,omitempty"`
	Reactions  model.Reactions     `bson:"reactions,omitempty"`
}

// LegacyMessage 旧版公共频道的消息文档，没有 chatId 与投递状态
type LegacyMessage struct {
	ID          string          `bson:"_id"`
	Text        string          `bson:"text"`
	UID         string          `bson:"uid"`
	DisplayName string          `bson:"displayName"`
	CreatedAt   time.Time       `bson:"createdAt"`
	ReplyTo     *ReplyRef       `bson:"replyTo,omitempty"`
	IsEdited    bool            `bson:"isEdited,omitempty"`
	Reactions   model.Reactions `bson:"reactions,omitempty"`
}

type ReplyRef struct {
	ID          string `bson:"id"`
	Text        string `bson:"text"`
	DisplayName string `bson:"displayName"`
}

func (m *Message) toModel() model.Message {
	return model.Message{
		ID:         m.ID,
		ChatID:     m.ChatID,
		Text:       m.Text,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Timestamp:  m.Timestamp,
		Status:     m.Status,
		Read:       m.Read,
		Type:       m.Type,
		ReplyTo:    m.ReplyTo.toModel(),
		IsEdited:   m.IsEdited,
		Reactions:  m.Reactions,
	}
}

// toModel 旧版文档统一视为已送达且已读
func (m *LegacyMessage) toModel() model.Message {
	name := m.DisplayName
	if name == "" {
		name = "Anonymous"
	}
	return model.Message{
		ID:         m.ID,
		ChatID:     model.GeneralChatID,
		Text:       m.Text,
		SenderID:   m.UID,
		SenderName: name,
		Timestamp:  m.CreatedAt,
		Status:     model.StatusSent,
		Read:       true,
		Type:       model.MessageText,
		ReplyTo:    m.ReplyTo.toModel(),
		IsEdited:   m.IsEdited,
		Reactions:  m.Reactions,
	}
}

func (r *ReplyRef) toModel() *model.ReplyRef {
	if r == nil {
		return nil
	}
	return &model.ReplyRef{ID: r.ID, Text: r.Text, DisplayName: r.DisplayName}
}

func replyFromModel(r *model.ReplyRef) *ReplyRef {
	if r == nil {
		return nil
	}
	return &ReplyRef{ID: r.ID, Text: r.Text, DisplayName: r.DisplayName}
}
