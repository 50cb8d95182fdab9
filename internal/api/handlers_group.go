package api

import (
	"Parley/internal/api/handler"
	"Parley/internal/service"
)

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	Session             *service.SessionService
	PageHandler         *handler.PageHandler
	SessionHandler      *handler.SessionHandler
	ChatHandler         *handler.ChatHandler
	ThemeHandler        *handler.ThemeHandler
	NotificationHandler *handler.NotificationHandler
	WsHandler           *handler.WsHandler
}
