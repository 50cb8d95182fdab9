package handler

import (
	"github.com/gin-gonic/gin"

	"Parley/internal/api/dto"
	"Parley/internal/pkg/response"
	"Parley/internal/pkg/util"
	"Parley/internal/service"
)

// ThemeRefresher 主题变化后把新主题推给所有渲染层
type ThemeRefresher interface {
	RefreshTheme()
}

type ThemeHandler struct {
	themes    *service.ThemeService
	refresher ThemeRefresher
}

func NewThemeHandler(themes *service.ThemeService, refresher ThemeRefresher) *ThemeHandler {
	return &ThemeHandler{themes: themes, refresher: refresher}
}

func (s *ThemeHandler) Get(c *gin.Context) {
	response.Success(c, dto.ThemeDTO{Theme: s.themes.Current()})
}

func (s *ThemeHandler) Set(c *gin.Context) {
	var req dto.ThemeDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}

	if err := s.themes.Set(c.Request.Context(), req.Theme); err != nil {
		response.Error(c, err)
		return
	}
	s.refresh()
	response.Success(c, dto.ThemeDTO{Theme: s.themes.Current()})
}

func (s *ThemeHandler) Toggle(c *gin.Context) {
	theme, err := s.themes.Toggle(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	s.refresh()
	response.Success(c, dto.ThemeDTO{Theme: theme})
}

func (s *ThemeHandler) refresh() {
	if s.refresher != nil {
		s.refresher.RefreshTheme()
	}
}
