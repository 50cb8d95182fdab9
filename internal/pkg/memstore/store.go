// Package memstore 进程内的文档存储，实现与 MongoDB 适配器相同的仓储接口与变更流语义
package memstore

import (
	"context"
	"sync"
	"time"

	"Parley/internal/model"
)

// Store 持有全部集合与服务端时钟
type Store struct {
	messages    *collection[model.Message]
	chats       *collection[model.Conversation]
	users       *collection[model.User]
	credentials *collection[model.Credential]

	clockMu sync.Mutex
	now     func() time.Time
	last    time.Time
}

type Option func(*Store)

// WithClock 替换服务端时钟
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		messages:    newCollection(func(m model.Message) string { return m.ID }, model.Message.Clone),
		chats:       newCollection(func(c model.Conversation) string { return c.ID }, model.Conversation.Clone),
		users:       newCollection(func(u model.User) string { return u.ID }, model.User.Clone),
		credentials: newCollection(func(c model.Credential) string { return c.Email }, cloneCredential),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// serverTime 严格递增的服务端时间戳
func (s *Store) serverTime() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func alive(ctx context.Context) error {
	return ctx.Err()
}

func cloneCredential(c model.Credential) model.Credential {
	if c.PhotoURL != nil {
		p := *c.PhotoURL
		c.PhotoURL = &p
	}
	return c
}
