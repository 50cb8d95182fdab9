package memstore

import (
	"context"
	"strings"

	"Parley/internal/model"
	"Parley/internal/repository"
)

type credentialRepo struct {
	store *Store
}

func NewCredentialRepo(s *Store) repository.CredentialRepo {
	return &credentialRepo{store: s}
}

func (s *credentialRepo) GetByEmail(ctx context.Context, email string) (*model.Credential, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}
	doc, ok := s.store.credentials.get(strings.ToLower(email))
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &doc, nil
}

func (s *credentialRepo) CreateCredential(ctx context.Context, cred *model.Credential) error {
	if err := alive(ctx); err != nil {
		return err
	}
	doc := cloneCredential(*cred)
	doc.Email = strings.ToLower(doc.Email)
	if !s.store.credentials.insert(doc) {
		return repository.ErrDuplicate
	}
	return nil
}
