package memstore

import (
	"context"

	"Parley/internal/model"
	"Parley/internal/pkg/stream"
	"Parley/internal/repository"
)

type userRepo struct {
	store *Store
}

func NewUserRepo(s *Store) repository.UserRepo {
	return &userRepo{store: s}
}

func (s *userRepo) GetUser(ctx context.Context, id string) (*model.User, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}
	doc, ok := s.store.users.get(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &doc, nil
}

func (s *userRepo) CreateUser(ctx context.Context, user *model.User) error {
	if err := alive(ctx); err != nil {
		return err
	}
	doc := user.Clone()
	doc.LastSeen = s.store.serverTime()
	if !s.store.users.insert(doc) {
		return repository.ErrDuplicate
	}
	user.LastSeen = doc.LastSeen
	return nil
}

func (s *userRepo) UpdatePresence(ctx context.Context, id string, online bool) error {
	if err := alive(ctx); err != nil {
		return err
	}
	at := s.store.serverTime()
	if !s.store.users.update(id, func(u *model.User) bool {
		u.IsOnline = online
		u.LastSeen = at
		return true
	}) {
		return repository.ErrNotFound
	}
	return nil
}

func (s *userRepo) ListUsers(ctx context.Context) ([]*model.User, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}
	docs := s.store.users.find(nil)
	out := make([]*model.User, len(docs))
	for i := range docs {
		out[i] = &docs[i]
	}
	return out, nil
}

func (s *userRepo) Watch(ctx context.Context, fn stream.Handler[model.User]) (stream.Subscription, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}
	return s.store.users.watch(func(model.User) bool { return true }, nil, fn), nil
}
