package memstore

import (
	"context"

	"github.com/google/uuid"

	"Parley/internal/model"
	"Parley/internal/pkg/stream"
	"Parley/internal/repository"
)

type messageRepo struct {
	store *Store
}

func NewMessageRepo(s *Store) repository.MessageRepo {
	return &messageRepo{store: s}
}

func (s *messageRepo) CreateMessage(ctx context.Context, msg *model.Message) error {
	if err := alive(ctx); err != nil {
		return err
	}
	doc := msg.Clone()
	doc.ID = uuid.NewString()
	doc.Timestamp = s.store.serverTime()
	doc.Pending = false
	if doc.ChatID == model.GeneralChatID {
		// 旧版公共频道不记录投递状态
		doc.Status = model.StatusSent
		doc.Read = true
		doc.Type = model.MessageText
	}
	s.store.messages.insert(doc)
	msg.ID = doc.ID
	msg.Timestamp = doc.Timestamp
	return nil
}

func (s *messageRepo) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}
	doc, ok := s.store.messages.get(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &doc, nil
}

func (s *messageRepo) MarkRead(ctx context.Context, id string) error {
	return s.modify(ctx, id, func(m *model.Message) bool {
		if m.ChatID == model.GeneralChatID {
			return false
		}
		m.Read = true
		m.Status = model.StatusRead
		return true
	})
}

func (s *messageRepo) EditText(ctx context.Context, id string, text string) error {
	return s.modify(ctx, id, func(m *model.Message) bool {
		m.Text = text
		m.IsEdited = true
		return true
	})
}

func (s *messageRepo) SetReaction(ctx context.Context, id, emoji, userID string, add bool) error {
	return s.modify(ctx, id, func(m *model.Message) bool {
		if add {
			if m.Reactions == nil {
				m.Reactions = make(model.Reactions)
			}
			if m.Reactions[emoji] == nil {
				m.Reactions[emoji] = make(map[string]string)
			}
			m.Reactions[emoji][userID] = emoji
			return true
		}
		if _, ok := m.Reactions[emoji][userID]; !ok {
			return false
		}
		delete(m.Reactions[emoji], userID)
		if len(m.Reactions[emoji]) == 0 {
			delete(m.Reactions, emoji)
		}
		return true
	})
}

func (s *messageRepo) WatchChat(ctx context.Context, chatID string, fn stream.Handler[model.Message]) (stream.Subscription, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}
	return s.store.messages.watch(
		func(m model.Message) bool { return m.ChatID == chatID },
		func(a, b model.Message) bool { return a.Timestamp.Before(b.Timestamp) },
		fn,
	), nil
}

func (s *messageRepo) modify(ctx context.Context, id string, mutate func(*model.Message) bool) error {
	if err := alive(ctx); err != nil {
		return err
	}
	if !s.store.messages.update(id, mutate) {
		return repository.ErrNotFound
	}
	return nil
}
