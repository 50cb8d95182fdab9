package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"Parley/internal/model"
	"Parley/internal/pkg/cache"
	"Parley/internal/pkg/identity"
	"Parley/internal/pkg/memstore"
	"Parley/internal/pkg/notify"
	"Parley/internal/pkg/stream"
	"Parley/internal/repository"
)

var errBackend = errors.New("backend unavailable")

type testEnv struct {
	store    *memstore.Store
	messages repository.MessageRepo
	chats    repository.ChatRepo
	users    repository.UserRepo
	cache    *cache.MemoryStore
	board    *notify.Board
	notifier *notify.Relay
}

func newTestEnv() *testEnv {
	st := memstore.New()
	board := notify.NewBoard()
	return &testEnv{
		store:    st,
		messages: memstore.NewMessageRepo(st),
		chats:    memstore.NewChatRepo(st),
		users:    memstore.NewUserRepo(st),
		cache:    cache.NewMemoryStore(),
		board:    board,
		notifier: notify.NewRelay(board),
	}
}

func (e *testEnv) engine(cfg ChatConfig, opts ...ChatOption) *ChatService {
	return NewChatService(e.messages, e.chats, e.users, e.cache, e.notifier, cfg, opts...)
}

func (e *testEnv) engineWith(messages repository.MessageRepo, cfg ChatConfig) *ChatService {
	return NewChatService(messages, e.chats, e.users, e.cache, e.notifier, cfg)
}

// countingMessages 统计 MarkRead 调用次数
type countingMessages struct {
	repository.MessageRepo
	markRead atomic.Int32
}

func (r *countingMessages) MarkRead(ctx context.Context, id string) error {
	r.markRead.Add(1)
	return r.MessageRepo.MarkRead(ctx, id)
}

// failingMessages 写入总是失败
type failingMessages struct {
	repository.MessageRepo
}

func (r *failingMessages) CreateMessage(context.Context, *model.Message) error {
	return errBackend
}

// capturingMessages 记录每个会话的回调，由测试手动推送
type capturingMessages struct {
	repository.MessageRepo

	mu           sync.Mutex
	handlers     map[string]stream.Handler[model.Message]
	watched      map[string]int
	unsubscribed map[string]int
	watches      int
}

func newCapturingMessages() *capturingMessages {
	return &capturingMessages{
		handlers:     make(map[string]stream.Handler[model.Message]),
		watched:      make(map[string]int),
		unsubscribed: make(map[string]int),
	}
}

func (r *capturingMessages) WatchChat(_ context.Context, chatID string, fn stream.Handler[model.Message]) (stream.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watches++
	r.watched[chatID]++
	r.handlers[chatID] = fn
	return stream.NewSubscription(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.unsubscribed[chatID]++
	}), nil
}

func (r *capturingMessages) push(chatID string, snap stream.Snapshot[model.Message]) {
	r.mu.Lock()
	fn := r.handlers[chatID]
	r.mu.Unlock()
	fn(snap)
}

func (r *capturingMessages) unsubscribeCount(chatID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unsubscribed[chatID]
}

// live 仍未取消的订阅数，按会话统计
func (r *capturingMessages) live() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int)
	for id, n := range r.watched {
		if n -= r.unsubscribed[id]; n != 0 {
			out[id] = n
		}
	}
	return out
}

func (r *capturingMessages) watchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.watches
}

func added(msgs ...model.Message) stream.Snapshot[model.Message] {
	snap := stream.Snapshot[model.Message]{Docs: msgs}
	for _, m := range msgs {
		snap.Changes = append(snap.Changes, stream.Change[model.Message]{Type: stream.Added, ID: m.ID, Doc: m})
	}
	return snap
}

// fakeProvider 可控的身份提供方
type fakeProvider struct {
	mu        sync.Mutex
	current   *identity.Identity
	listeners []func(*identity.Identity)
	signInErr error
	signOut   error
	calls     *[]string
}

func (p *fakeProvider) SignInWithPopup(ctx context.Context) (*identity.Identity, error) {
	return p.SignInWithPassword(ctx, "", "")
}

func (p *fakeProvider) SignInWithPassword(context.Context, string, string) (*identity.Identity, error) {
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	id := &identity.Identity{UID: "u1", Email: "u1@example.com", DisplayName: "Alice"}
	p.set(id)
	return id, nil
}

func (p *fakeProvider) SignOut(context.Context) error {
	if p.calls != nil {
		*p.calls = append(*p.calls, "signout")
	}
	if p.signOut != nil {
		return p.signOut
	}
	p.set(nil)
	return nil
}

func (p *fakeProvider) OnIdentityChanged(fn func(*identity.Identity)) stream.Subscription {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	current := p.current
	p.mu.Unlock()
	fn(current)
	return stream.Noop()
}

func (p *fakeProvider) set(id *identity.Identity) {
	p.mu.Lock()
	p.current = id
	fns := append([]func(*identity.Identity){}, p.listeners...)
	p.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

// fakeLifecycle 记录引擎启停
type fakeLifecycle struct {
	mu      sync.Mutex
	started []string
	stops   int
	calls   *[]string
}

func (l *fakeLifecycle) Start(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, userID)
	return nil
}

func (l *fakeLifecycle) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stops++
	if l.calls != nil {
		*l.calls = append(*l.calls, "stop")
	}
}

// recordingUsers 记录在线状态写入
type recordingUsers struct {
	repository.UserRepo
	calls       *[]string
	presenceErr error
}

func (r *recordingUsers) UpdatePresence(ctx context.Context, id string, online bool) error {
	if r.calls != nil {
		if online {
			*r.calls = append(*r.calls, "online")
		} else {
			*r.calls = append(*r.calls, "offline")
		}
	}
	if r.presenceErr != nil {
		return r.presenceErr
	}
	return r.UserRepo.UpdatePresence(ctx, id, online)
}

// gatedCache 写入指定值时阻塞，直到 release 被关闭
type gatedCache struct {
	cache.Store
	value   string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedCache(store cache.Store, value string) *gatedCache {
	return &gatedCache{
		Store:   store,
		value:   value,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (c *gatedCache) Set(ctx context.Context, key, value string) error {
	if value == c.value {
		c.once.Do(func() { close(c.entered) })
		<-c.release
	}
	return c.Store.Set(ctx, key, value)
}
