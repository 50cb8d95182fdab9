package repository

import (
	"context"

	"Parley/internal/model"
	"Parley/internal/pkg/stream"
)

type ChatRepo interface {
	// CreateChat 写入会话并回填 ID，LastMessageTime 由服务端分配
	CreateChat(ctx context.Context, chat *model.Conversation) error
	GetChat(ctx context.Context, id string) (*model.Conversation, error)
	ListByParticipant(ctx context.Context, userID string) ([]*model.Conversation, error)
	// UpdateLastMessage 更新冗余的最后一条消息与时间，不改动未读数
	UpdateLastMessage(ctx context.Context, id string, text string) error
	ResetUnread(ctx context.Context, id string) error
	WatchByParticipant(ctx context.Context, userID string, fn stream.Handler[model.Conversation]) (stream.Subscription, error)
}
