package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"Parley/internal/model"
	"Parley/internal/pkg/stream"
	"Parley/internal/repository"
)

type messageRepoImpl struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) repository.MessageRepo {
	return &messageRepoImpl{
		col: db.Collection(MessagesCollection),
	}
}

// legacyFilter general 会话的文档没有 chatId 字段
var legacyFilter = bson.M{"chatId": bson.M{"$exists": false}}

// CreateMessage 通过 upsert + $currentDate 让服务端分配时间戳，再读回
func (s *messageRepoImpl) CreateMessage(ctx context.Context, msg *model.Message) error {
	id := uuid.NewString()
	var fields bson.M
	tsField := "timestamp"
	if msg.ChatID == model.GeneralChatID {
		tsField = "createdAt"
		fields = bson.M{
			"text":        msg.Text,
			"uid":         msg.SenderID,
			"displayName": msg.SenderName,
		}
	} else {
		fields = bson.M{
			"chatId":     msg.ChatID,
			"text":       msg.Text,
			"senderId":   msg.SenderID,
			"senderName": msg.SenderName,
			"status":     msg.Status,
			"read":       msg.Read,
			"type":       msg.Type,
		}
	}
	if msg.ReplyTo != nil {
		fields["replyTo"] = replyFromModel(msg.ReplyTo)
	}

	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$setOnInsert": fields, "$currentDate": bson.M{tsField: true}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return errors.Wrap(err, "create message")
	}

	var stamped bson.M
	if err := s.col.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{tsField: 1})).Decode(&stamped); err != nil {
		return errors.Wrap(err, "read back message timestamp")
	}
	if dt, ok := stamped[tsField].(primitive.DateTime); ok {
		msg.Timestamp = dt.Time().UTC()
	}
	msg.ID = id
	return nil
}

func (s *messageRepoImpl) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	var raw bson.Raw
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&raw); err != nil {
		return nil, notFound(err, "get message")
	}
	msg, err := decodeAnyMessage(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode message")
	}
	return &msg, nil
}

func (s *messageRepoImpl) MarkRead(ctx context.Context, id string) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{"read": true, "status": model.StatusRead}}, "mark read")
}

func (s *messageRepoImpl) EditText(ctx context.Context, id string, text string) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{"text": text, "isEdited": true}}, "edit message")
}

func (s *messageRepoImpl) SetReaction(ctx context.Context, id, emoji, userID string, add bool) error {
	field := "reactions." + emoji + "." + userID
	update := bson.M{"$unset": bson.M{field: ""}}
	if add {
		update = bson.M{"$set": bson.M{field: emoji}}
	}
	return s.update(ctx, id, update, "set reaction")
}

func (s *messageRepoImpl) WatchChat(ctx context.Context, chatID string, fn stream.Handler[model.Message]) (stream.Subscription, error) {
	if chatID == model.GeneralChatID {
		return watch(ctx, query[model.Message]{
			col:         s.col,
			filter:      legacyFilter,
			sort:        bson.D{{Key: "createdAt", Value: 1}},
			streamMatch: watchFilter(legacyFilter),
			decode:      decodeLegacyMessage,
			match:       func(model.Message) bool { return true },
			idOf:        messageID,
			at:          messageAt,
		}, fn)
	}
	filter := bson.M{"chatId": chatID}
	return watch(ctx, query[model.Message]{
		col:         s.col,
		filter:      filter,
		sort:        bson.D{{Key: "timestamp", Value: 1}},
		streamMatch: watchFilter(filter),
		decode:      decodeMessage,
		match:       func(m model.Message) bool { return m.ChatID == chatID },
		idOf:        messageID,
		at:          messageAt,
	}, fn)
}

func (s *messageRepoImpl) update(ctx context.Context, id string, update bson.M, op string) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return errors.Wrap(err, op)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func decodeMessage(raw bson.Raw) (model.Message, error) {
	var doc Message
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return model.Message{}, err
	}
	return doc.toModel(), nil
}

func decodeLegacyMessage(raw bson.Raw) (model.Message, error) {
	var doc LegacyMessage
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return model.Message{}, err
	}
	return doc.toModel(), nil
}

func decodeAnyMessage(raw bson.Raw) (model.Message, error) {
	if _, err := raw.LookupErr("chatId"); err != nil {
		return decodeLegacyMessage(raw)
	}
	return decodeMessage(raw)
}

func messageID(m model.Message) string { return m.ID }

func messageAt(m model.Message) time.Time { return m.Timestamp }

// notFound mongo.ErrNoDocuments 统一转换为 repository.ErrNotFound
func notFound(err error, op string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	return errors.Wrap(err, op)
}
