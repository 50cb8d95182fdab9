package service

import (
	"context"
	log "log/slog"
	"sync"

	"Parley/internal/pkg/cache"
	"Parley/internal/pkg/consts"
)

// Renderer 接收主题的渲染层
type Renderer interface {
	ApplyTheme(theme string) error
}

// ThemeService 明暗主题，持久化在本地缓存
type ThemeService struct {
	cache cache.Store

	mu      sync.Mutex
	theme   string
	applied map[Renderer]string
}

func NewThemeService(store cache.Store) *ThemeService {
	return &ThemeService{
		cache:   store,
		theme:   consts.ThemeLight,
		applied: make(map[Renderer]string),
	}
}

// Load 读取已保存的主题，缺失或无法识别时为 light
func (s *ThemeService) Load(ctx context.Context) string {
	theme := consts.ThemeLight
	value, ok, err := s.cache.Get(ctx, consts.ThemeKey)
	switch {
	case err != nil:
		log.WarnContext(ctx, "Read theme failed", "err", err)
	case ok && validTheme(value):
		theme = value
	}
	s.mu.Lock()
	s.theme = theme
	s.mu.Unlock()
	return theme
}

func (s *ThemeService) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

func (s *ThemeService) IsDark() bool {
	return s.Current() == consts.ThemeDark
}

// Toggle 在 light 与 dark 之间切换并保存
func (s *ThemeService) Toggle(ctx context.Context) (string, error) {
	next := consts.ThemeDark
	if s.IsDark() {
		next = consts.ThemeLight
	}
	if err := s.Set(ctx, next); err != nil {
		return s.Current(), err
	}
	return next, nil
}

func (s *ThemeService) Set(ctx context.Context, theme string) error {
	if !validTheme(theme) {
		return ErrThemeInvalid
	}
	s.mu.Lock()
	s.theme = theme
	s.mu.Unlock()
	if err := s.cache.Set(ctx, consts.ThemeKey, theme); err != nil {
		log.ErrorContext(ctx, "Persist theme failed", "theme", theme, "err", err)
		return fail(FailureWrite, "persist theme", err)
	}
	return nil
}

// Apply 把当前主题推给渲染层，与该渲染层上次收到的相同时跳过。返回是否实际推送
func (s *ThemeService) Apply(renderer Renderer) (bool, error) {
	s.mu.Lock()
	theme := s.theme
	last, seen := s.applied[renderer]
	s.mu.Unlock()
	if seen && last == theme {
		return false, nil
	}
	if err := renderer.ApplyTheme(theme); err != nil {
		return false, err
	}
	s.mu.Lock()
	s.applied[renderer] = theme
	s.mu.Unlock()
	return true, nil
}

// Forget 渲染层断开后调用
func (s *ThemeService) Forget(renderer Renderer) {
	s.mu.Lock()
	delete(s.applied, renderer)
	s.mu.Unlock()
}

func validTheme(theme string) bool {
	return theme == consts.ThemeLight || theme == consts.ThemeDark
}
