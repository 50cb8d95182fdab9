package mongo

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"Parley/internal/model"
	"Parley/internal/pkg/stream"
	"Parley/internal/repository"
)

type chatRepoImpl struct {
	col *mongo.Collection
}

func NewChatRepo(db *mongo.Database) repository.ChatRepo {
	return &chatRepoImpl{col: db.Collection(ChatsCollection)}
}

func (s *chatRepoImpl) CreateChat(ctx context.Context, chat *model.Conversation) error {
	id := chat.ID
	if id == "" {
		id = uuid.NewString()
	}
	fields := bson.M{
		"name":         chat.Name,
		"participants": chat.Participants,
		"lastMessage":  chat.LastMessage,
		"unreadCount":  chat.UnreadCount,
		"type":         chat.Type,
	}
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$setOnInsert": fields, "$currentDate": bson.M{"lastMessageTime": true}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return errors.Wrap(err, "create chat")
	}
	if res.UpsertedCount == 0 {
		return repository.ErrDuplicate
	}
	created, err := s.GetChat(ctx, id)
	if err != nil {
		return err
	}
	chat.ID = id
	chat.LastMessageTime = created.LastMessageTime
	return nil
}

func (s *chatRepoImpl) GetChat(ctx context.Context, id string) (*model.Conversation, error) {
	var doc Chat
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err, "get chat")
	}
	c := doc.toModel()
	return &c, nil
}

func (s *chatRepoImpl) ListByParticipant(ctx context.Context, userID string) ([]*model.Conversation, error) {
	cursor, err := s.col.Find(ctx, bson.M{"participants": userID})
	if err != nil {
		return nil, errors.Wrap(err, "list chats")
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var docs []Chat
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode chats")
	}
	out := make([]*model.Conversation, 0, len(docs))
	for i := range docs {
		c := docs[i].toModel()
		out = append(out, &c)
	}
	return out, nil
}

func (s *chatRepoImpl) UpdateLastMessage(ctx context.Context, id string, text string) error {
	return s.update(ctx, id, bson.M{
		"$set":         bson.M{"lastMessage": text},
		"$currentDate": bson.M{"lastMessageTime": true},
	}, "update last message")
}

func (s *chatRepoImpl) ResetUnread(ctx context.Context, id string) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{"unreadCount": 0}}, "reset unread")
}

func (s *chatRepoImpl) WatchByParticipant(ctx context.Context, userID string, fn stream.Handler[model.Conversation]) (stream.Subscription, error) {
	filter := bson.M{"participants": userID}
	return watch(ctx, query[model.Conversation]{
		col:         s.col,
		filter:      filter,
		sort:        bson.D{{Key: "_id", Value: 1}},
		streamMatch: watchFilter(filter),
		decode: func(raw bson.Raw) (model.Conversation, error) {
			var doc Chat
			if err := bson.Unmarshal(raw, &doc); err != nil {
				return model.Conversation{}, err
			}
			return doc.toModel(), nil
		},
		match: func(c model.Conversation) bool { return c.HasParticipant(userID) },
		idOf:  func(c model.Conversation) string { return c.ID },
	}, fn)
}

func (s *chatRepoImpl) update(ctx context.Context, id string, update bson.M, op string) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return errors.Wrap(err, op)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
