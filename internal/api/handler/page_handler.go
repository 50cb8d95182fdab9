package handler

import (
	"github.com/gin-gonic/gin"

	"Parley/internal/pkg/response"
	"Parley/internal/service"
)

// PageHandler 页面路由，守卫放行后返回页面所需的初始数据
type PageHandler struct {
	chat    *service.ChatService
	session *service.SessionService
	themes  *service.ThemeService
}

func NewPageHandler(chat *service.ChatService, session *service.SessionService, themes *service.ThemeService) *PageHandler {
	return &PageHandler{chat: chat, session: session, themes: themes}
}

func (s *PageHandler) Login(c *gin.Context) {
	session, err := toSessionDTO(s.session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"page":    "login",
		"theme":   s.themes.Current(),
		"session": session,
	})
}

func (s *PageHandler) Chat(c *gin.Context) {
	session, err := toSessionDTO(s.session)
	if err != nil {
		response.Error(c, err)
		return
	}
	state, err := toChatState(s.chat)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"page":    "chat",
		"theme":   s.themes.Current(),
		"session": session,
		"chat":    state,
	})
}
