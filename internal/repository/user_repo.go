package repository

import (
	"context"

	"Parley/internal/model"
	"Parley/internal/pkg/stream"
)

type UserRepo interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	// CreateUser ID 由身份提供方给出，LastSeen 由服务端分配
	CreateUser(ctx context.Context, user *model.User) error
	// UpdatePresence 写入在线状态并刷新 lastSeen
	UpdatePresence(ctx context.Context, id string, online bool) error
	ListUsers(ctx context.Context) ([]*model.User, error)
	Watch(ctx context.Context, fn stream.Handler[model.User]) (stream.Subscription, error)
}
