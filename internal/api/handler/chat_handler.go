package handler

import (
	"github.com/gin-gonic/gin"

	"Parley/internal/api/dto"
	"Parley/internal/model"
	"Parley/internal/pkg/response"
	"Parley/internal/pkg/util"
	"Parley/internal/service"
)

// MaxAttachmentSize 附件大小上限
const MaxAttachmentSize = 20 << 20

type ChatHandler struct {
	chat    *service.ChatService
	session *service.SessionService
}

func NewChatHandler(chat *service.ChatService, session *service.SessionService) *ChatHandler {
	return &ChatHandler{chat: chat, session: session}
}

// State 聊天页完整状态
func (s *ChatHandler) State(c *gin.Context) {
	res, err := toChatState(s.chat)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (s *ChatHandler) Conversations(c *gin.Context) {
	res, err := toConversationDTOs(s.chat.Conversations())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (s *ChatHandler) Messages(c *gin.Context) {
	res, err := toMessageDTOs(s.chat.ActiveMessages())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// SetActive 只切换选中会话，不建立订阅
func (s *ChatHandler) SetActive(c *gin.Context) {
	var req dto.SelectChatDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}

	s.chat.SetActiveConversation(c.Request.Context(), req.ChatID)
	response.Success(c, gin.H{"chatId": req.ChatID})
}

// Open 选中会话并订阅其消息
func (s *ChatHandler) Open(c *gin.Context) {
	var req dto.OpenChatDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}

	if err := s.chat.OpenMessageSubscription(c.Request.Context(), req.ChatID); err != nil {
		response.Error(c, err)
		return
	}
	s.State(c)
}

func (s *ChatHandler) Send(c *gin.Context) {
	var req dto.SendMessageDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}

	var opts []service.SendOption
	if req.ReplyTo != "" {
		opts = append(opts, service.WithReplyTo(req.ReplyTo))
	}
	msg, err := s.chat.SendMessage(c.Request.Context(), req.Text, currentUserID(c), s.senderName(), model.MessageType(req.Type), opts...)
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := toMessageDTO(msg)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (s *ChatHandler) Edit(c *gin.Context) {
	var req dto.EditMessageDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}

	if err := s.chat.EditMessage(c.Request.Context(), c.Param("message_id"), req.Text); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *ChatHandler) React(c *gin.Context) {
	var req dto.ReactionDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}

	if err := s.chat.ToggleReaction(c.Request.Context(), c.Param("message_id"), req.Emoji, currentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *ChatHandler) MarkRead(c *gin.Context) {
	var req dto.MarkReadDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}

	if err := s.chat.MarkRead(c.Request.Context(), req.ChatID, currentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.UnreadDTO{Active: s.chat.UnreadCount(), Total: s.chat.TotalUnreadCount()})
}

// Direct 查找或创建与对方的单聊
func (s *ChatHandler) Direct(c *gin.Context) {
	var req dto.DirectChatDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}

	name := req.OtherUserName
	if name == "" {
		if other, ok := s.chat.UserByID(req.OtherUserID); ok {
			name = other.Name
		}
	}
	chatID, err := s.chat.CreateOrFindDirectConversation(c.Request.Context(), currentUserID(c), req.OtherUserID, name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"chatId": chatID})
}

func (s *ChatHandler) Typing(c *gin.Context) {
	var req dto.TypingDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	if req.Typing {
		s.chat.AddTypingIndicator(c.Request.Context(), currentUserID(c))
	} else {
		s.chat.RemoveTypingIndicator(c.Request.Context(), currentUserID(c))
	}
	response.Success(c, s.chat.TypingUsers())
}

// Upload 上传附件并作为 file 消息发送
func (s *ChatHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if header.Size <= 0 || header.Size > MaxAttachmentSize {
		response.Fail(c, response.BadRequest, "文件大小超出限制")
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, err)
		return
	}
	defer func() {
		_ = file.Close()
	}()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	msg, err := s.chat.SendAttachment(c.Request.Context(), header.Filename, file, header.Size, contentType, currentUserID(c), s.senderName())
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := toMessageDTO(msg)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Users scope=friends 时不包含自己
func (s *ChatHandler) Users(c *gin.Context) {
	users := s.chat.Roster()
	if c.Query("scope") == "friends" {
		users = s.chat.Friends(currentUserID(c))
	}
	res, err := toUserDTOs(users)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (s *ChatHandler) Unread(c *gin.Context) {
	response.Success(c, dto.UnreadDTO{Active: s.chat.UnreadCount(), Total: s.chat.TotalUnreadCount()})
}

func (s *ChatHandler) senderName() string {
	if user := s.session.User(); user != nil {
		return user.Name
	}
	return service.AnonymousName
}
