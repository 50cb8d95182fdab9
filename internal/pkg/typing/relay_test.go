package typing

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRelayDeliversRemoteEventsOnly(t *testing.T) {
	rdb := newTestRedis(t)
	relay := NewRelay(rdb)
	ctx := context.Background()
	chatID := "relay-test-" + time.Now().Format("150405.000000")

	got := make(chan Event, 4)
	sub, err := relay.Subscribe(ctx, chatID, "me", func(ev Event) { got <- ev })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, relay.Publish(ctx, Event{ChatID: chatID, UserID: "me", Typing: true}))
	require.NoError(t, relay.Publish(ctx, Event{ChatID: chatID, UserID: "bob", Typing: true}))

	select {
	case ev := <-got:
		assert.Equal(t, "bob", ev.UserID)
		assert.True(t, ev.Typing)
	case <-time.After(2 * time.Second):
		t.Fatal("remote typing event not delivered")
	}

	select {
	case ev := <-got:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "im:typing:c1", Channel("c1"))
}
