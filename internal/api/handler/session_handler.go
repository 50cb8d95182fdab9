package handler

import (
	"github.com/gin-gonic/gin"

	"Parley/internal/api/dto"
	"Parley/internal/pkg/response"
	"Parley/internal/pkg/util"
	"Parley/internal/service"
)

type SessionHandler struct {
	session *service.SessionService
}

func NewSessionHandler(session *service.SessionService) *SessionHandler {
	return &SessionHandler{session: session}
}

// Login 邮箱密码登录
func (s *SessionHandler) Login(c *gin.Context) {
	var req dto.LoginDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}

	if err := s.session.SignInWithEmail(c.Request.Context(), req.Email, req.Password); err != nil {
		response.Error(c, err)
		return
	}
	s.respondSession(c)
}

// LoginWithGoogle 第三方登录，失败信息放在返回的会话状态里
func (s *SessionHandler) LoginWithGoogle(c *gin.Context) {
	s.session.SignInWithGoogle(c.Request.Context())
	s.respondSession(c)
}

// Register 邮箱注册
func (s *SessionHandler) Register(c *gin.Context) {
	var req dto.RegisterDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}

	if err := s.session.Register(c.Request.Context(), req.Email, req.Password, req.DisplayName); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *SessionHandler) Logout(c *gin.Context) {
	if err := s.session.Logout(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Me 当前会话状态
func (s *SessionHandler) Me(c *gin.Context) {
	s.respondSession(c)
}

// UpdatePresence 手动设置在线状态
func (s *SessionHandler) UpdatePresence(c *gin.Context) {
	var req dto.PresenceDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}

	if err := s.session.UpdateOnlineStatus(c.Request.Context(), *req.Online); err != nil {
		response.Error(c, err)
		return
	}
	s.respondSession(c)
}

func (s *SessionHandler) respondSession(c *gin.Context) {
	res, err := toSessionDTO(s.session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
