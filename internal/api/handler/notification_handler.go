package handler

import (
	"github.com/gin-gonic/gin"

	"Parley/internal/pkg/notify"
	"Parley/internal/pkg/response"
)

type NotificationHandler struct {
	board *notify.Board
}

func NewNotificationHandler(board *notify.Board) *NotificationHandler {
	return &NotificationHandler{board: board}
}

// Current 当前显示的提示
func (s *NotificationHandler) Current(c *gin.Context) {
	response.Success(c, s.board.Current())
}

// Hide 手动关闭提示
func (s *NotificationHandler) Hide(c *gin.Context) {
	s.board.Hide()
	response.Success(c, s.board.Current())
}
