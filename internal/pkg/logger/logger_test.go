package logger

import (
	"bytes"
	"context"
	log "log/slog"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"Parley/internal/pkg/consts"
)

func TestContextHandlerAddsTraceID(t *testing.T) {
	var buf bytes.Buffer
	l := log.New(&ContextHandler{log.NewJSONHandler(&buf, nil)})

	ctx := context.WithValue(context.Background(), TraceIDKey, "abc-123")
	l.InfoContext(ctx, "hello")
	assert.Contains(t, buf.String(), `"trace_id":"abc-123"`)

	buf.Reset()
	l.Info("no trace")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, log.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, log.LevelInfo, ParseLevel("bogus"))
}

func TestContextHandlerAddsUserID(t *testing.T) {
	var buf bytes.Buffer
	l := log.New(&ContextHandler{log.NewJSONHandler(&buf, nil)}).With("component", "chat")

	ctx := context.WithValue(WithTrace(context.Background(), "t-1"), consts.UserIDKey, "alice")
	l.InfoContext(ctx, "sent")
	assert.Contains(t, buf.String(), `"user_id":"alice"`)
	assert.Contains(t, buf.String(), `"trace_id":"t-1"`)
	assert.Contains(t, buf.String(), `"component":"chat"`)
	assert.Equal(t, "t-1", TraceID(ctx))
}

func TestRedisAreaAndArgs(t *testing.T) {
	ctx := context.Background()

	publish := redis.NewCmd(ctx, "publish", consts.IMTypingChannel+"chat-1", `{"typing":true}`)
	area, target := RedisArea(publish)
	assert.Equal(t, RedisAreaTyping, area)
	assert.Equal(t, "chat-1", target)

	set := redis.NewCmd(ctx, "set", consts.CachePrefix+consts.SessionTokenKey, "secret-jwt", 0)
	area, target = RedisArea(set)
	assert.Equal(t, RedisAreaCache, area)
	assert.Equal(t, consts.SessionTokenKey, target)
	assert.NotContains(t, RedisArgs(set), "secret-jwt")
	assert.Equal(t, "secret-jwt", set.Args()[2])

	theme := redis.NewCmd(ctx, "set", consts.CachePrefix+consts.ThemeKey, "dark", 0)
	assert.Contains(t, RedisArgs(theme), "dark")

	area, _ = RedisArea(redis.NewCmd(ctx, "ping"))
	assert.Equal(t, RedisAreaOther, area)
	assert.Equal(t, "[PROTECTED]", RedisArgs(redis.NewCmd(ctx, "auth", "pw")))
}

func TestMongoCommandClassification(t *testing.T) {
	raw := func(d bson.D) bson.Raw {
		b, err := bson.Marshal(d)
		require.NoError(t, err)
		return b
	}

	watch := raw(bson.D{
		{Key: "aggregate", Value: "messages"},
		{Key: "pipeline", Value: bson.A{
			bson.D{{Key: "$changeStream", Value: bson.D{{Key: "fullDocument", Value: "updateLookup"}}}},
			bson.D{{Key: "$match", Value: bson.D{}}},
		}},
	})
	assert.True(t, IsChangeStream("aggregate", watch))
	assert.Equal(t, "messages", MongoCollection("aggregate", watch))

	plain := raw(bson.D{
		{Key: "aggregate", Value: "chats"},
		{Key: "pipeline", Value: bson.A{bson.D{{Key: "$match", Value: bson.D{}}}}},
	})
	assert.False(t, IsChangeStream("aggregate", plain))

	find := raw(bson.D{{Key: "find", Value: "users"}})
	assert.False(t, IsChangeStream("find", find))
	assert.Equal(t, "users", MongoCollection("find", find))

	getMore := raw(bson.D{{Key: "getMore", Value: int64(42)}, {Key: "collection", Value: "messages"}})
	assert.Equal(t, "messages", MongoCollection("getMore", getMore))
	assert.Equal(t, cursorRef(42), cursorKey(getMore))
}
