package repository

import (
	"context"

	"Parley/internal/model"
)

type CredentialRepo interface {
	GetByEmail(ctx context.Context, email string) (*model.Credential, error)
	// CreateCredential 邮箱已存在时返回 ErrDuplicate
	CreateCredential(ctx context.Context, cred *model.Credential) error
}
