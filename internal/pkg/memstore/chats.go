package memstore

import (
	"context"

	"github.com/google/uuid"

	"Parley/internal/model"
	"Parley/internal/pkg/stream"
	"Parley/internal/repository"
)

type chatRepo struct {
	store *Store
}

func NewChatRepo(s *Store) repository.ChatRepo {
	return &chatRepo{store: s}
}

func (s *chatRepo) CreateChat(ctx context.Context, chat *model.Conversation) error {
	if err := alive(ctx); err != nil {
		return err
	}
	doc := chat.Clone()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.LastMessageTime = s.store.serverTime()
	if !s.store.chats.insert(doc) {
		return repository.ErrDuplicate
	}
	chat.ID = doc.ID
	chat.LastMessageTime = doc.LastMessageTime
	return nil
}

func (s *chatRepo) GetChat(ctx context.Context, id string) (*model.Conversation, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}
	doc, ok := s.store.chats.get(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &doc, nil
}

func (s *chatRepo) ListByParticipant(ctx context.Context, userID string) ([]*model.Conversation, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}
	docs := s.store.chats.find(func(c model.Conversation) bool { return c.HasParticipant(userID) })
	out := make([]*model.Conversation, len(docs))
	for i := range docs {
		out[i] = &docs[i]
	}
	return out, nil
}

func (s *chatRepo) UpdateLastMessage(ctx context.Context, id string, text string) error {
	if err := alive(ctx); err != nil {
		return err
	}
	at := s.store.serverTime()
	if !s.store.chats.update(id, func(c *model.Conversation) bool {
		c.LastMessage = text
		c.LastMessageTime = at
		return true
	}) {
		return repository.ErrNotFound
	}
	return nil
}

func (s *chatRepo) ResetUnread(ctx context.Context, id string) error {
	if err := alive(ctx); err != nil {
		return err
	}
	if !s.store.chats.update(id, func(c *model.Conversation) bool {
		if c.UnreadCount == 0 {
			return false
		}
		c.UnreadCount = 0
		return true
	}) {
		return repository.ErrNotFound
	}
	return nil
}

func (s *chatRepo) WatchByParticipant(ctx context.Context, userID string, fn stream.Handler[model.Conversation]) (stream.Subscription, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}
	return s.store.chats.watch(
		func(c model.Conversation) bool { return c.HasParticipant(userID) },
		nil,
		fn,
	), nil
}
