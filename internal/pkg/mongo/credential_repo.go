package mongo

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"Parley/internal/model"
	"Parley/internal/repository"
)

type credentialRepoImpl struct {
	col *mongo.Collection
}

func NewCredentialRepo(db *mongo.Database) repository.CredentialRepo {
	return &credentialRepoImpl{col: db.Collection(CredentialsCollection)}
}

func (s *credentialRepoImpl) GetByEmail(ctx context.Context, email string) (*model.Credential, error) {
	var doc Credential
	if err := s.col.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&doc); err != nil {
		return nil, notFound(err, "get credential")
	}
	return &model.Credential{
		UserID:       doc.UserID,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		DisplayName:  doc.DisplayName,
		PhotoURL:     doc.PhotoURL,
	}, nil
}

func (s *credentialRepoImpl) CreateCredential(ctx context.Context, cred *model.Credential) error {
	_, err := s.col.InsertOne(ctx, Credential{
		Email:        strings.ToLower(cred.Email),
		UserID:       cred.UserID,
		PasswordHash: cred.PasswordHash,
		DisplayName:  cred.DisplayName,
		PhotoURL:     cred.PhotoURL,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return errors.Wrap(err, "create credential")
	}
	return nil
}
