package mongo

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"Parley/internal/model"
	"Parley/internal/pkg/stream"
	"Parley/internal/repository"
)

// newTestDB 需要副本集才能使用变更流，连不上时跳过
func newTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	url := os.Getenv("PARLEY_TEST_MONGO_URL")
	if url == "" {
		url = "mongodb://localhost:27017/?replicaSet=rs0&directConnection=true"
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url).SetServerSelectionTimeout(time.Second))
	if err != nil {
		t.Skipf("mongo not available: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		t.Skipf("mongo not available: %v", err)
	}
	db := client.Database("parley_test_" + uuid.NewString()[:8])
	require.NoError(t, EnsureIndexes(context.Background(), db))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

type collector struct {
	mu    sync.Mutex
	snaps []stream.Snapshot[model.Message]
}

func (c *collector) handle(s stream.Snapshot[model.Message]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, s)
}

func (c *collector) last() stream.Snapshot[model.Message] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snaps[len(c.snaps)-1]
}

func TestMessageRepoWatchChat(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewMessageRepo(db)

	first := &model.Message{ChatID: "c1", Text: "one", SenderID: "u1", Status: model.StatusSending, Type: model.MessageText}
	require.NoError(t, repo.CreateMessage(ctx, first))
	require.False(t, first.Timestamp.IsZero())

	col := &collector{}
	sub, err := repo.WatchChat(ctx, "c1", col.handle)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.Len(t, col.last().Docs, 1)

	second := &model.Message{ChatID: "c1", Text: "two", SenderID: "u2", Type: model.MessageText}
	require.NoError(t, repo.CreateMessage(ctx, second))
	require.NoError(t, repo.MarkRead(ctx, first.ID))

	require.Eventually(t, func() bool {
		docs := col.last().Docs
		return len(docs) == 2 && docs[0].Status == model.StatusRead
	}, 5*time.Second, 20*time.Millisecond)

	assert.ErrorIs(t, repo.MarkRead(ctx, "missing"), repository.ErrNotFound)
}

func TestMessageRepoLegacyGeneral(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewMessageRepo(db)

	m := &model.Message{ChatID: model.GeneralChatID, Text: "hello", SenderID: "u1", SenderName: "Alice"}
	require.NoError(t, repo.CreateMessage(ctx, m))
	require.NoError(t, repo.CreateMessage(ctx, &model.Message{ChatID: "scoped", Text: "x"}))

	got, err := repo.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GeneralChatID, got.ChatID)
	assert.True(t, got.Read)

	col := &collector{}
	sub, err := repo.WatchChat(ctx, model.GeneralChatID, col.handle)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	docs := col.last().Docs
	require.Len(t, docs, 1)
	assert.Equal(t, "Alice", docs[0].SenderName)
}

func TestChatAndUserRepos(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	chats := NewChatRepo(db)
	users := NewUserRepo(db)

	chat := &model.Conversation{Name: "Bob", Participants: []string{"a", "b"}, Type: model.ConversationDirect, UnreadCount: 2}
	require.NoError(t, chats.CreateChat(ctx, chat))
	require.NoError(t, chats.UpdateLastMessage(ctx, chat.ID, "hey"))
	got, err := chats.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UnreadCount)
	assert.Equal(t, "hey", got.LastMessage)

	require.NoError(t, users.CreateUser(ctx, &model.User{ID: "a", Name: "Alice", IsOnline: true}))
	assert.ErrorIs(t, users.CreateUser(ctx, &model.User{ID: "a"}), repository.ErrDuplicate)
	require.NoError(t, users.UpdatePresence(ctx, "a", false))
	u, err := users.GetUser(ctx, "a")
	require.NoError(t, err)
	assert.False(t, u.IsOnline)
}
