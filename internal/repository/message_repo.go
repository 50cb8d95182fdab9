package repository

import (
	"context"

	"Parley/internal/model"
	"Parley/internal/pkg/stream"
)

// MessageRepo 消息集合。general 会话使用旧版不带 chatId 的文档结构，由实现负责映射
type MessageRepo interface {
	// CreateMessage 写入消息，ID 与 Timestamp 由服务端分配并回填
	CreateMessage(ctx context.Context, msg *model.Message) error
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	// MarkRead 置 read=true, status=read
	MarkRead(ctx context.Context, id string) error
	// EditText 修改正文并标记 isEdited
	EditText(ctx context.Context, id string, text string) error
	// SetReaction add 为 true 时加入 reactor，否则移除
	SetReaction(ctx context.Context, id, emoji, userID string, add bool) error
	// WatchChat 订阅会话消息，先推送按时间排序的完整结果集，再推送增量
	WatchChat(ctx context.Context, chatID string, fn stream.Handler[model.Message]) (stream.Subscription, error)
}
