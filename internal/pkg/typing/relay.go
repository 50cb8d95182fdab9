package typing

import (
	"context"
	log "log/slog"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/stream"
)

// Event 跨客户端转发的输入状态
type Event struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
	Typing bool   `json:"typing"`
}

// Relay 通过 Redis 发布订阅在客户端之间同步输入状态
type Relay struct {
	rdb *redis.Client
}

func NewRelay(rdb *redis.Client) *Relay {
	return &Relay{rdb: rdb}
}

// Channel 会话对应的频道名
func Channel(chatID string) string {
	return consts.IMTypingChannel + chatID
}

// Publish 广播本地用户的输入状态
func (s *Relay) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, Channel(ev.ChatID), payload).Err()
}

// Subscribe 订阅会话频道，selfID 自己发出的事件会被忽略
func (s *Relay) Subscribe(ctx context.Context, chatID, selfID string, fn func(Event)) (stream.Subscription, error) {
	pubsub := s.rdb.Subscribe(ctx, Channel(chatID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	go func() {
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn("Drop malformed typing event", "channel", msg.Channel, "err", err)
				continue
			}
			if ev.UserID == "" || ev.UserID == selfID || ev.ChatID != chatID {
				continue
			}
			fn(ev)
		}
	}()

	return stream.NewSubscription(func() {
		if err := pubsub.Close(); err != nil {
			log.Warn("Close typing subscription failed", "chatID", chatID, "err", err)
		}
	}), nil
}
