// Package identity 身份提供方：邮箱密码与第三方登录，签发会话令牌并在重启后恢复
package identity

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"Parley/internal/model"
	"Parley/internal/pkg/cache"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/security"
	"Parley/internal/pkg/stream"
	"Parley/internal/repository"
)

// Identity 身份提供方给出的登录身份
type Identity struct {
	UID         string  `json:"uid"`
	Email       string  `json:"email"`
	DisplayName string  `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
}

// Provider 身份提供方
type Provider interface {
	SignInWithPopup(ctx context.Context) (*Identity, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Identity, error)
	SignOut(ctx context.Context) error
	// OnIdentityChanged 订阅时先推送一次当前身份（可能为 nil），之后每次变化推送一次
	OnIdentityChanged(fn func(*Identity)) stream.Subscription
}

var ErrInvalidCredentials = errors.New("invalid email or password")

// TokenProvider 用自签 JWT 维持会话，令牌保存在本地持久缓存
type TokenProvider struct {
	creds     repository.CredentialRepo
	issuer    *security.TokenIssuer
	cache     cache.Store
	federated *FederatedClient

	mu        sync.Mutex
	current   *Identity
	listeners map[uint64]func(*Identity)
	nextID    uint64
}

func NewTokenProvider(creds repository.CredentialRepo, issuer *security.TokenIssuer, store cache.Store, federated *FederatedClient) *TokenProvider {
	return &TokenProvider{
		creds:     creds,
		issuer:    issuer,
		cache:     store,
		federated: federated,
		listeners: make(map[uint64]func(*Identity)),
	}
}

// Restore 从缓存中恢复上次的会话，令牌无效时清除
func (s *TokenProvider) Restore(ctx context.Context) error {
	token, ok, err := s.cache.Get(ctx, consts.SessionTokenKey)
	if err != nil || !ok {
		return err
	}
	claims, err := s.issuer.ValidateToken(token)
	if err != nil {
		log.WarnContext(ctx, "Discard stale session token", "err", err)
		return s.cache.Delete(ctx, consts.SessionTokenKey)
	}
	s.set(identityFromClaims(claims))
	return nil
}

func (s *TokenProvider) SignInWithPopup(ctx context.Context) (*Identity, error) {
	claims, err := s.federated.Exchange(ctx)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, identityFromClaims(claims))
}

func (s *TokenProvider) SignInWithPassword(ctx context.Context, email, password string) (*Identity, error) {
	cred, err := s.creds.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := security.CheckPasswordHash(password, cred.PasswordHash); err != nil {
		if errors.Is(err, security.ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return s.establish(ctx, &Identity{
		UID:         cred.UserID,
		Email:       cred.Email,
		DisplayName: cred.DisplayName,
		PhotoURL:    cred.PhotoURL,
	})
}

// Register 创建邮箱密码凭据，不自动登录
func (s *TokenProvider) Register(ctx context.Context, email, password, displayName string) (*model.Credential, error) {
	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}
	cred := &model.Credential{
		UserID:       uuid.NewString(),
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		DisplayName:  displayName,
	}
	if err := s.creds.CreateCredential(ctx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

func (s *TokenProvider) SignOut(ctx context.Context) error {
	if err := s.cache.Delete(ctx, consts.SessionTokenKey); err != nil {
		return err
	}
	s.set(nil)
	return nil
}

func (s *TokenProvider) OnIdentityChanged(fn func(*Identity)) stream.Subscription {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	current := copyIdentity(s.current)
	s.mu.Unlock()

	fn(current)

	return stream.NewSubscription(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	})
}

// Current 当前身份
func (s *TokenProvider) Current() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyIdentity(s.current)
}

func (s *TokenProvider) establish(ctx context.Context, id *Identity) (*Identity, error) {
	token, err := s.issuer.GenerateToken(security.UserClaims{
		UserID:      id.UID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		PhotoURL:    id.PhotoURL,
	})
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, consts.SessionTokenKey, token); err != nil {
		return nil, err
	}
	s.set(id)
	return copyIdentity(id), nil
}

func (s *TokenProvider) set(id *Identity) {
	s.mu.Lock()
	s.current = id
	fns := make([]func(*Identity), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(copyIdentity(id))
	}
}

func identityFromClaims(c *security.UserClaims) *Identity {
	return &Identity{
		UID:         c.UserID,
		Email:       c.Email,
		DisplayName: c.DisplayName,
		PhotoURL:    c.PhotoURL,
	}
}

func copyIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	out := *id
	if id.PhotoURL != nil {
		p := *id.PhotoURL
		out.PhotoURL = &p
	}
	return &out
}
