package service

import (
	"context"
	"errors"
	log "log/slog"
	"sync"
	"time"

	"Parley/internal/model"
	"Parley/internal/pkg/identity"
	"Parley/internal/pkg/notify"
	"Parley/internal/pkg/stream"
	"Parley/internal/repository"
)

// AnonymousName 身份未提供显示名时使用
const AnonymousName = "Anonymous"

// Lifecycle 随登录状态启停的同步引擎
type Lifecycle interface {
	Start(ctx context.Context, userID string) error
	Stop()
}

// Registrar 支持邮箱注册的身份提供方
type Registrar interface {
	Register(ctx context.Context, email, password, displayName string) (*model.Credential, error)
}

// SessionService 登录会话：当前用户资料、加载状态与最近一次错误
type SessionService struct {
	provider identity.Provider
	users    repository.UserRepo
	notifier notify.Notifier
	engine   Lifecycle

	mu         sync.Mutex
	user       *model.User
	loading    bool
	err        error
	initCtx    context.Context
	listeners  map[uint64]func()
	listenerID uint64
}

func NewSessionService(provider identity.Provider, users repository.UserRepo, notifier notify.Notifier, engine Lifecycle) *SessionService {
	return &SessionService{
		provider:  provider,
		users:     users,
		notifier:  notifier,
		engine:    engine,
		loading:   true,
		initCtx:   context.Background(),
		listeners: make(map[uint64]func()),
	}
}

// InitAuth 订阅身份变化：首次出现的身份创建用户资料，已有资料的标记在线，身份消失时清空本地用户
func (s *SessionService) InitAuth(ctx context.Context) stream.Subscription {
	s.mu.Lock()
	s.initCtx = context.WithoutCancel(ctx)
	s.mu.Unlock()
	return s.provider.OnIdentityChanged(s.onIdentity)
}

func (s *SessionService) onIdentity(id *identity.Identity) {
	s.mu.Lock()
	ctx := s.initCtx
	s.mu.Unlock()

	if id == nil {
		s.setUser(nil)
		s.engine.Stop()
		s.finishLoading()
		return
	}

	user, err := s.ensureProfile(ctx, id)
	if err != nil {
		log.ErrorContext(ctx, "Load user profile failed", "userID", id.UID, "err", err)
		s.setErr(err)
		s.notifier.Error("Failed to load profile")
		s.finishLoading()
		return
	}
	s.setUser(user)
	if err := s.engine.Start(ctx, user.ID); err != nil {
		log.ErrorContext(ctx, "Start sync engine failed", "userID", user.ID, "err", err)
	}
	s.finishLoading()
}

func (s *SessionService) ensureProfile(ctx context.Context, id *identity.Identity) (*model.User, error) {
	existing, err := s.users.GetUser(ctx, id.UID)
	switch {
	case err == nil:
		if err := s.users.UpdatePresence(ctx, id.UID, true); err != nil {
			return nil, err
		}
		// lastSeen 由服务端写入，重新读取以拿到最新值
		fresh, err := s.users.GetUser(ctx, id.UID)
		if err != nil {
			log.WarnContext(ctx, "Reload profile after presence update failed", "userID", id.UID, "err", err)
			existing.IsOnline = true
			existing.LastSeen = time.Now()
			return existing, nil
		}
		return fresh, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	name := id.DisplayName
	if name == "" {
		name = AnonymousName
	}
	user := &model.User{
		ID:       id.UID,
		Name:     name,
		Email:    id.Email,
		PhotoURL: id.PhotoURL,
		IsOnline: true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return s.users.GetUser(ctx, id.UID)
		}
		return nil, err
	}
	log.InfoContext(ctx, "User profile created", "userID", user.ID)
	return user, nil
}

// SignInWithGoogle 第三方登录，失败只记录错误并提示，不向上抛出
func (s *SessionService) SignInWithGoogle(ctx context.Context) {
	s.setLoading(true)
	defer s.finishLoading()

	if _, err := s.provider.SignInWithPopup(ctx); err != nil {
		log.WarnContext(ctx, "Federated sign in failed", "err", err)
		s.setErr(fail(FailureAuthentication, "sign in with google", mapIdentityErr(err)))
		s.notifier.Error("Sign in failed")
		return
	}
	s.setErr(nil)
	s.notifier.Success("Signed in")
}

// SignInWithEmail 邮箱密码登录，失败时返回认证类错误
func (s *SessionService) SignInWithEmail(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return ErrParamInvalid
	}
	s.setLoading(true)
	defer s.finishLoading()

	if _, err := s.provider.SignInWithPassword(ctx, email, password); err != nil {
		log.WarnContext(ctx, "Password sign in failed", "email", email, "err", err)
		failure := fail(FailureAuthentication, "sign in with email", mapIdentityErr(err))
		s.setErr(failure)
		s.notifier.Error("Invalid email or password")
		return failure
	}
	s.setErr(nil)
	s.notifier.Success("Signed in")
	return nil
}

// Register 邮箱注册，成功后需再登录
func (s *SessionService) Register(ctx context.Context, email, password, displayName string) error {
	registrar, ok := s.provider.(Registrar)
	if !ok {
		return ErrParamInvalid
	}
	if _, err := registrar.Register(ctx, email, password, displayName); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrUserExist
		}
		log.ErrorContext(ctx, "Register failed", "email", email, "err", err)
		return fail(FailureAuthentication, "register", err)
	}
	return nil
}

// Logout 先尽力把在线状态写为离线，再退出登录
func (s *SessionService) Logout(ctx context.Context) error {
	user := s.User()
	if user != nil {
		if err := s.users.UpdatePresence(ctx, user.ID, false); err != nil {
			log.WarnContext(ctx, "Mark user offline failed", "userID", user.ID, "err", err)
		}
	}

	if err := s.provider.SignOut(ctx); err != nil {
		log.ErrorContext(ctx, "Sign out failed", "err", err)
		failure := fail(FailureAuthentication, "sign out", err)
		s.setErr(failure)
		s.notifier.Error("Failed to sign out")
		return failure
	}

	s.setUser(nil)
	s.engine.Stop()
	s.notifier.Info("Signed out")
	return nil
}

// UpdateOnlineStatus 写入当前用户的在线状态，未登录时不做任何事
func (s *SessionService) UpdateOnlineStatus(ctx context.Context, online bool) error {
	user := s.User()
	if user == nil {
		return nil
	}
	if err := s.users.UpdatePresence(ctx, user.ID, online); err != nil {
		log.ErrorContext(ctx, "Update presence failed", "userID", user.ID, "err", err)
		return fail(FailureWrite, "update presence", err)
	}
	lastSeen := time.Now()
	if fresh, err := s.users.GetUser(ctx, user.ID); err == nil {
		lastSeen = fresh.LastSeen
	}
	s.mu.Lock()
	if s.user != nil && s.user.ID == user.ID {
		s.user.IsOnline = online
		s.user.LastSeen = lastSeen
	}
	s.mu.Unlock()
	s.changed()
	return nil
}

// Heartbeat 定时刷新在线用户的 lastSeen，未登录时跳过
func (s *SessionService) Heartbeat(ctx context.Context) error {
	user := s.User()
	if user == nil || !user.IsOnline {
		return nil
	}
	return s.UpdateOnlineStatus(ctx, true)
}

func (s *SessionService) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := s.user.Clone()
	return &u
}

func (s *SessionService) CurrentUserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

func (s *SessionService) IsAuthenticated() bool {
	return s.CurrentUserID() != ""
}

func (s *SessionService) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err 最近一次登录相关的错误
func (s *SessionService) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// OnChange 注册会话状态变化监听，返回取消函数
func (s *SessionService) OnChange(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listenerID++
	id := s.listenerID
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *SessionService) setUser(user *model.User) {
	s.mu.Lock()
	if user == nil {
		s.user = nil
	} else {
		u := user.Clone()
		s.user = &u
	}
	s.mu.Unlock()
	s.changed()
}

func (s *SessionService) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.changed()
}

func (s *SessionService) setLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
	s.changed()
}

func (s *SessionService) finishLoading() {
	s.setLoading(false)
}

func (s *SessionService) changed() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func mapIdentityErr(err error) error {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return ErrInvalidCredentials
	case errors.Is(err, identity.ErrFederatedDisabled):
		return ErrFederatedDisabled
	}
	return err
}
