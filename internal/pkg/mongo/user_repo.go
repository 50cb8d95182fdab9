package mongo

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"Parley/internal/model"
	"Parley/internal/pkg/stream"
	"Parley/internal/repository"
)

type userRepoImpl struct {
	col *mongo.Collection
}

func NewUserRepo(db *mongo.Database) repository.UserRepo {
	return &userRepoImpl{col: db.Collection(UsersCollection)}
}

func (s *userRepoImpl) GetUser(ctx context.Context, id string) (*model.User, error) {
	var doc User
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err, "get user")
	}
	u := doc.toModel()
	return &u, nil
}

func (s *userRepoImpl) CreateUser(ctx context.Context, user *model.User) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{
			"$setOnInsert": bson.M{
				"name":     user.Name,
				"email":    user.Email,
				"photoURL": user.PhotoURL,
				"isOnline": user.IsOnline,
			},
			"$currentDate": bson.M{"lastSeen": true},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return errors.Wrap(err, "create user")
	}
	if res.UpsertedCount == 0 {
		return repository.ErrDuplicate
	}
	created, err := s.GetUser(ctx, user.ID)
	if err != nil {
		return err
	}
	user.LastSeen = created.LastSeen
	return nil
}

func (s *userRepoImpl) UpdatePresence(ctx context.Context, id string, online bool) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":         bson.M{"isOnline": online},
		"$currentDate": bson.M{"lastSeen": true},
	})
	if err != nil {
		return errors.Wrap(err, "update presence")
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *userRepoImpl) ListUsers(ctx context.Context) ([]*model.User, error) {
	cursor, err := s.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var docs []User
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode users")
	}
	out := make([]*model.User, 0, len(docs))
	for i := range docs {
		u := docs[i].toModel()
		out = append(out, &u)
	}
	return out, nil
}

func (s *userRepoImpl) Watch(ctx context.Context, fn stream.Handler[model.User]) (stream.Subscription, error) {
	return watch(ctx, query[model.User]{
		col:         s.col,
		filter:      bson.M{},
		sort:        bson.D{{Key: "_id", Value: 1}},
		streamMatch: watchFilter(nil),
		decode: func(raw bson.Raw) (model.User, error) {
			var doc User
			if err := bson.Unmarshal(raw, &doc); err != nil {
				return model.User{}, err
			}
			return doc.toModel(), nil
		},
		match: func(model.User) bool { return true },
		idOf:  func(u model.User) string { return u.ID },
	}, fn)
}
