package service

import (
	"context"
	"errors"
	"io"
	log "log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"Parley/internal/model"
	"Parley/internal/pkg/cache"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/minio"
	"Parley/internal/pkg/notify"
	"Parley/internal/pkg/reconcile"
	"Parley/internal/pkg/stream"
	"Parley/internal/pkg/typing"
	"Parley/internal/repository"
)

// EventKind 状态变化类别，供 UI 推送使用
type EventKind string

const (
	EventMessages EventKind = "messages"
	EventChats    EventKind = "chats"
	EventUsers    EventKind = "users"
	EventTyping   EventKind = "typing"
	EventActive   EventKind = "active"
)

type Event struct {
	Kind EventKind `json:"kind"`
}

// TypingRelay 跨客户端的输入状态转发
type TypingRelay interface {
	Publish(ctx context.Context, ev typing.Event) error
	Subscribe(ctx context.Context, chatID, selfID string, fn func(typing.Event)) (stream.Subscription, error)
}

// AttachmentStore 附件对象存储
type AttachmentStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error)
}

// ChatConfig 同步引擎参数
type ChatConfig struct {
	Policy             string
	Optimistic         bool
	PendingMatchWindow time.Duration
	TypingTTL          time.Duration
}

type ChatOption func(*ChatService)

func WithTypingRelay(relay TypingRelay) ChatOption {
	return func(s *ChatService) {
		s.relay = relay
	}
}

func WithAttachments(store AttachmentStore) ChatOption {
	return func(s *ChatService) {
		s.attachments = store
	}
}

// WithTypingOptions 透传给 typing.Set，测试中用于注入假时钟
func WithTypingOptions(opts ...typing.Option) ChatOption {
	return func(s *ChatService) {
		s.typingOpts = append(s.typingOpts, opts...)
	}
}

func WithClock(now func() time.Time) ChatOption {
	return func(s *ChatService) {
		s.now = now
	}
}

// ChatService 会话同步引擎：会话列表、当前会话的消息、用户目录与输入状态。
// 所有状态变更都在 mu 下完成，仓储调用与订阅的建立、取消都在锁外进行
type ChatService struct {
	messages    repository.MessageRepo
	chats       repository.ChatRepo
	users       repository.UserRepo
	cache       cache.Store
	notifier    notify.Notifier
	relay       TypingRelay
	attachments AttachmentStore
	typingOpts  []typing.Option
	now         func() time.Time
	cfg         ChatConfig

	mu         sync.Mutex
	userID     string
	activeID   string
	list       *reconcile.MessageList
	policy     reconcile.Policy
	msgGen     uint64
	msgSub     stream.Subscription
	typingSub  stream.Subscription
	readMarked map[string]struct{}

	startGen   uint64
	chatsSub   stream.Subscription
	usersSub   stream.Subscription
	chatList   []model.Conversation
	roster     []model.User
	typing     *typing.Set
	direct     singleflight.Group
	listeners  map[uint64]func(Event)
	listenerID uint64
}

func NewChatService(
	messages repository.MessageRepo,
	chats repository.ChatRepo,
	users repository.UserRepo,
	store cache.Store,
	notifier notify.Notifier,
	cfg ChatConfig,
	opts ...ChatOption,
) *ChatService {
	if cfg.PendingMatchWindow <= 0 {
		cfg.PendingMatchWindow = time.Minute
	}
	if cfg.Policy == "" {
		cfg.Policy = reconcile.PolicyAuto
	}
	s := &ChatService{
		messages:   messages,
		chats:      chats,
		users:      users,
		cache:      store,
		notifier:   notifier,
		now:        time.Now,
		cfg:        cfg,
		list:       reconcile.NewMessageList(cfg.PendingMatchWindow),
		readMarked: make(map[string]struct{}),
		listeners:  make(map[uint64]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	typingOpts := append([]typing.Option{
		typing.WithTTL(cfg.TypingTTL),
		typing.WithOnChange(func() { s.emit(EventTyping) }),
	}, s.typingOpts...)
	s.typing = typing.NewSet(typingOpts...)
	return s
}

// Restore 读取上次选中的会话，不建立订阅
func (s *ChatService) Restore(ctx context.Context) error {
	id, ok, err := s.cache.Get(ctx, consts.ActiveChatIDKey)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.mu.Lock()
	s.activeID = id
	s.mu.Unlock()
	return nil
}

// Start 登录后订阅会话列表与用户目录，并恢复上次选中会话的消息订阅
func (s *ChatService) Start(ctx context.Context, userID string) error {
	if userID == "" {
		log.WarnContext(ctx, "Start called without user id")
		return fail(FailureSubscription, "start", ErrNotAuthenticated)
	}

	s.mu.Lock()
	if s.userID == userID && s.chatsSub != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	s.Stop()

	s.mu.Lock()
	s.userID = userID
	s.startGen++
	gen := s.startGen
	active := s.activeID
	s.mu.Unlock()

	chatsSub, err := s.chats.WatchByParticipant(ctx, userID, func(snap stream.Snapshot[model.Conversation]) {
		s.onChats(gen, snap)
	})
	if err != nil {
		log.ErrorContext(ctx, "Subscribe chats failed", "userID", userID, "err", err)
		return fail(FailureSubscription, "subscribe chats", err)
	}
	usersSub, err := s.users.Watch(ctx, func(snap stream.Snapshot[model.User]) {
		s.onUsers(gen, snap)
	})
	if err != nil {
		chatsSub.Unsubscribe()
		log.ErrorContext(ctx, "Subscribe users failed", "err", err)
		return fail(FailureSubscription, "subscribe users", err)
	}

	s.mu.Lock()
	if s.startGen != gen {
		s.mu.Unlock()
		chatsSub.Unsubscribe()
		usersSub.Unsubscribe()
		return nil
	}
	s.chatsSub, s.usersSub = chatsSub, usersSub
	s.mu.Unlock()

	if active != "" {
		return s.OpenMessageSubscription(ctx, active)
	}
	return nil
}

// Stop 取消全部订阅，选中的会话保留在缓存中
func (s *ChatService) Stop() {
	s.mu.Lock()
	subs := []stream.Subscription{s.msgSub, s.typingSub, s.chatsSub, s.usersSub}
	s.msgSub, s.typingSub, s.chatsSub, s.usersSub = nil, nil, nil, nil
	s.userID = ""
	s.msgGen++
	s.startGen++
	s.list.Clear()
	s.readMarked = make(map[string]struct{})
	s.chatList = nil
	s.roster = nil
	s.mu.Unlock()

	for _, sub := range subs {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
	s.typing.Clear()
	s.emit(EventMessages)
	s.emit(EventChats)
	s.emit(EventUsers)
}

// SetActiveConversation 切换选中会话并持久化，id 为空表示不选中。
// 旧会话的消息订阅在返回前取消
func (s *ChatService) SetActiveConversation(ctx context.Context, id string) {
	s.setActive(ctx, id)
}

// setActive 返回本次选中对应的订阅代数
func (s *ChatService) setActive(ctx context.Context, id string) uint64 {
	s.mu.Lock()
	prev := []stream.Subscription{s.msgSub, s.typingSub}
	s.msgSub, s.typingSub = nil, nil
	s.msgGen++
	gen := s.msgGen
	s.activeID = id
	s.policy = reconcile.ForConversation(s.cfg.Policy, id)
	s.list.Clear()
	s.readMarked = make(map[string]struct{})
	s.mu.Unlock()

	for _, sub := range prev {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
	s.typing.Clear()
	s.persistActive(ctx)

	s.emit(EventActive)
	s.emit(EventMessages)
	return gen
}

// persistActive 写入当前选中的会话。写入期间若选中已变化则重写，
// 保证最后一次完成的写入与最终的选中一致
func (s *ChatService) persistActive(ctx context.Context) {
	for {
		s.mu.Lock()
		id, gen := s.activeID, s.msgGen
		s.mu.Unlock()

		var err error
		if id == "" {
			err = s.cache.Delete(ctx, consts.ActiveChatIDKey)
		} else {
			err = s.cache.Set(ctx, consts.ActiveChatIDKey, id)
		}
		if err != nil {
			log.WarnContext(ctx, "Persist active chat failed", "chatID", id, "err", err)
			return
		}

		s.mu.Lock()
		current := s.msgGen == gen
		s.mu.Unlock()
		if current {
			return
		}
	}
}

// OpenMessageSubscription 选中会话并建立唯一的消息订阅，替换之前的订阅
func (s *ChatService) OpenMessageSubscription(ctx context.Context, id string) error {
	if id == "" {
		return ErrParamInvalid
	}
	s.mu.Lock()
	userID := s.userID
	s.mu.Unlock()
	if userID == "" {
		log.WarnContext(ctx, "Reject message subscription without signed-in user", "chatID", id)
		return fail(FailureSubscription, "subscribe messages", ErrNotAuthenticated)
	}

	gen := s.setActive(ctx, id)

	sub, err := s.messages.WatchChat(ctx, id, func(snap stream.Snapshot[model.Message]) {
		s.onMessages(gen, snap)
	})
	if err != nil {
		log.ErrorContext(ctx, "Subscribe messages failed", "chatID", id, "err", err)
		s.notifier.Error("Failed to load messages")
		return fail(FailureSubscription, "subscribe messages", err)
	}

	var typingSub stream.Subscription
	if s.relay != nil {
		typingSub, err = s.relay.Subscribe(ctx, id, userID, func(ev typing.Event) {
			s.onRemoteTyping(gen, ev)
		})
		if err != nil {
			log.WarnContext(ctx, "Subscribe typing relay failed", "chatID", id, "err", err)
			typingSub = nil
		}
	}

	s.mu.Lock()
	if s.msgGen != gen || s.activeID != id {
		s.mu.Unlock()
		log.DebugContext(ctx, "Drop superseded message subscription", "chatID", id)
		sub.Unsubscribe()
		if typingSub != nil {
			typingSub.Unsubscribe()
		}
		return nil
	}
	stale := []stream.Subscription{s.msgSub, s.typingSub}
	s.msgSub = sub
	s.typingSub = typingSub
	s.mu.Unlock()

	for _, old := range stale {
		if old != nil {
			old.Unsubscribe()
		}
	}
	return nil
}

// SendOption 发送选项
type SendOption func(*sendOptions)

type sendOptions struct {
	replyTo string
}

// WithReplyTo 回复已加载的消息，保存其正文与发送者名称的快照
func WithReplyTo(messageID string) SendOption {
	return func(o *sendOptions) {
		o.replyTo = messageID
	}
}

// SendMessage 向当前会话发送消息。开启乐观插入时先放入临时条目，失败时移除
func (s *ChatService) SendMessage(ctx context.Context, text, senderID, senderName string, typ model.MessageType, opts ...SendOption) (*model.Message, error) {
	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}
	if typ == "" {
		typ = model.MessageText
	}
	if !typ.Valid() || strings.TrimSpace(text) == "" || senderID == "" {
		return nil, ErrParamInvalid
	}

	s.mu.Lock()
	chatID := s.activeID
	if chatID == "" {
		s.mu.Unlock()
		log.WarnContext(ctx, "Send message without active conversation", "senderID", senderID)
		return nil, ErrNoActiveConversation
	}
	msg := model.Message{
		ChatID:     chatID,
		Text:       text,
		SenderID:   senderID,
		SenderName: senderName,
		Timestamp:  s.now(),
		Status:     model.StatusSending,
		Type:       typ,
	}
	if o.replyTo != "" {
		target, ok := s.list.Get(o.replyTo)
		if !ok || target.Pending {
			s.mu.Unlock()
			return nil, ErrMessageNotFound
		}
		msg.ReplyTo = &model.ReplyRef{ID: target.ID, Text: target.Text, DisplayName: target.SenderName}
	}
	gen := s.msgGen
	var tentative string
	if s.cfg.Optimistic {
		tentative = reconcile.PendingPrefix + uuid.NewString()
		pending := msg.Clone()
		pending.ID = tentative
		s.list.AddPending(pending)
	}
	s.mu.Unlock()
	if tentative != "" {
		s.emit(EventMessages)
	}

	if err := s.messages.CreateMessage(ctx, &msg); err != nil {
		s.dropPending(gen, tentative)
		log.ErrorContext(ctx, "Send message failed", "chatID", chatID, "err", err)
		s.notifier.Error("Failed to send message")
		return nil, fail(FailureWrite, "send message", err)
	}

	if chatID != model.GeneralChatID {
		if err := s.chats.UpdateLastMessage(ctx, chatID, text); err != nil {
			log.ErrorContext(ctx, "Update last message failed", "chatID", chatID, "err", err)
			s.notifier.Error("Failed to update conversation")
		}
	}

	s.notifier.Success("Message sent")
	if msg.Status.Rank() < model.StatusSent.Rank() {
		msg.Status = model.StatusSent
	}
	out := msg.Clone()
	return &out, nil
}

// SendAttachment 上传文件后发送 file 类型消息，正文为文件 URL
func (s *ChatService) SendAttachment(ctx context.Context, fileName string, reader io.Reader, size int64, contentType, senderID, senderName string) (*model.Message, error) {
	if s.attachments == nil {
		return nil, ErrAttachmentsDisabled
	}
	chatID := s.ActiveConversationID()
	if chatID == "" {
		return nil, ErrNoActiveConversation
	}
	url, err := s.attachments.UploadFile(ctx, minio.ObjectName(chatID, fileName, s.now()), reader, size, contentType)
	if err != nil {
		log.ErrorContext(ctx, "Upload attachment failed", "chatID", chatID, "err", err)
		s.notifier.Error("Failed to upload file")
		return nil, fail(FailureWrite, "upload attachment", err)
	}
	return s.SendMessage(ctx, url, senderID, senderName, model.MessageFile)
}

// MarkRead 把会话中他人发送且未读的消息标为已读；已读或已提交过的消息不会再次写入。
// 写入失败只提示与记录日志
func (s *ChatService) MarkRead(ctx context.Context, chatID, userID string) error {
	if chatID == "" || userID == "" {
		return ErrParamInvalid
	}

	s.mu.Lock()
	var targets []string
	for _, m := range s.list.Items() {
		if m.ChatID != chatID || m.SenderID == userID || m.Read || m.Pending {
			continue
		}
		if _, done := s.readMarked[m.ID]; done {
			continue
		}
		s.readMarked[m.ID] = struct{}{}
		targets = append(targets, m.ID)
	}
	s.mu.Unlock()

	written := 0
	for _, id := range targets {
		if err := s.messages.MarkRead(ctx, id); err != nil {
			s.mu.Lock()
			delete(s.readMarked, id)
			s.mu.Unlock()
			log.ErrorContext(ctx, "Mark message read failed", "messageID", id, "err", err)
			s.notifier.Error("Failed to update read status")
			continue
		}
		written++
	}

	if written > 0 && chatID != model.GeneralChatID {
		if err := s.chats.ResetUnread(ctx, chatID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			log.ErrorContext(ctx, "Reset unread counter failed", "chatID", chatID, "err", err)
			s.notifier.Error("Failed to update read status")
		}
	}
	return nil
}

// EditMessage 修改自己发送的消息
func (s *ChatService) EditMessage(ctx context.Context, messageID, text string) error {
	if messageID == "" || strings.TrimSpace(text) == "" {
		return ErrParamInvalid
	}
	s.mu.Lock()
	userID := s.userID
	m, loaded := s.list.Get(messageID)
	s.mu.Unlock()
	if userID == "" {
		return ErrNotAuthenticated
	}
	if loaded && m.SenderID != userID {
		return UnauthorizedError
	}

	if err := s.messages.EditText(ctx, messageID, text); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMessageNotFound
		}
		log.ErrorContext(ctx, "Edit message failed", "messageID", messageID, "err", err)
		s.notifier.Error("Failed to edit message")
		return fail(FailureWrite, "edit message", err)
	}
	return nil
}

// ToggleReaction 同一用户对同一 emoji 再次操作即取消
func (s *ChatService) ToggleReaction(ctx context.Context, messageID, emoji, userID string) error {
	if messageID == "" || emoji == "" || userID == "" || strings.ContainsAny(emoji, ".$") {
		return ErrParamInvalid
	}
	s.mu.Lock()
	m, ok := s.list.Get(messageID)
	s.mu.Unlock()
	if !ok {
		loaded, err := s.messages.GetMessage(ctx, messageID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrMessageNotFound
			}
			return fail(FailureWrite, "toggle reaction", err)
		}
		m = *loaded
	}
	_, present := m.Reactions[emoji][userID]

	if err := s.messages.SetReaction(ctx, messageID, emoji, userID, !present); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMessageNotFound
		}
		log.ErrorContext(ctx, "Toggle reaction failed", "messageID", messageID, "err", err)
		s.notifier.Error("Failed to update reaction")
		return fail(FailureWrite, "toggle reaction", err)
	}
	return nil
}

// CreateOrFindDirectConversation 查找与对方的单聊，不存在则创建；同一对用户的并发调用合并为一次
func (s *ChatService) CreateOrFindDirectConversation(ctx context.Context, userID, otherUserID, otherUserName string) (string, error) {
	if userID == "" || otherUserID == "" || userID == otherUserID {
		return "", ErrParamInvalid
	}

	v, err, _ := s.direct.Do(pairKey(userID, otherUserID), func() (interface{}, error) {
		existing, err := s.chats.ListByParticipant(ctx, userID)
		if err != nil {
			return "", err
		}
		for _, c := range existing {
			if c.IsDirectWith(otherUserID) {
				return c.ID, nil
			}
		}

		chat := &model.Conversation{
			Name:         otherUserName,
			Participants: []string{userID, otherUserID},
			LastMessage:  "",
			UnreadCount:  0,
			Type:         model.ConversationDirect,
		}
		if err := s.chats.CreateChat(ctx, chat); err != nil {
			return "", err
		}
		log.InfoContext(ctx, "Direct chat created", "chatID", chat.ID, "userID", userID, "otherUserID", otherUserID)
		return chat.ID, nil
	})
	if err != nil {
		log.ErrorContext(ctx, "Create direct chat failed", "userID", userID, "otherUserID", otherUserID, "err", err)
		s.notifier.Error("Failed to open conversation")
		return "", fail(FailureWrite, "create direct chat", err)
	}
	return v.(string), nil
}

// AddTypingIndicator 标记用户正在输入；本地用户的状态同时广播给其他客户端
func (s *ChatService) AddTypingIndicator(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	s.typing.Add(userID)
	s.publishTyping(ctx, userID, true)
}

func (s *ChatService) RemoveTypingIndicator(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	s.typing.Remove(userID)
	s.publishTyping(ctx, userID, false)
}

// OnChange 注册状态变化监听，返回取消函数
func (s *ChatService) OnChange(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listenerID++
	id := s.listenerID
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *ChatService) publishTyping(ctx context.Context, userID string, on bool) {
	if s.relay == nil {
		return
	}
	s.mu.Lock()
	self, chatID := s.userID, s.activeID
	s.mu.Unlock()
	if userID != self || chatID == "" {
		return
	}
	if err := s.relay.Publish(ctx, typing.Event{ChatID: chatID, UserID: userID, Typing: on}); err != nil {
		log.WarnContext(ctx, "Publish typing event failed", "chatID", chatID, "err", err)
	}
}

func (s *ChatService) onMessages(gen uint64, snap stream.Snapshot[model.Message]) {
	s.mu.Lock()
	if gen != s.msgGen {
		s.mu.Unlock()
		return
	}
	s.policy.Apply(s.list, snap)
	s.mu.Unlock()
	s.emit(EventMessages)
}

func (s *ChatService) onChats(gen uint64, snap stream.Snapshot[model.Conversation]) {
	docs := make([]model.Conversation, len(snap.Docs))
	for i, d := range snap.Docs {
		docs[i] = d.Clone()
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].LastMessageTime.After(docs[j].LastMessageTime)
	})
	s.mu.Lock()
	if gen != s.startGen {
		s.mu.Unlock()
		return
	}
	s.chatList = docs
	s.mu.Unlock()
	s.emit(EventChats)
}

func (s *ChatService) onUsers(gen uint64, snap stream.Snapshot[model.User]) {
	docs := make([]model.User, len(snap.Docs))
	for i, d := range snap.Docs {
		docs[i] = d.Clone()
	}
	s.mu.Lock()
	if gen != s.startGen {
		s.mu.Unlock()
		return
	}
	s.roster = docs
	s.mu.Unlock()
	s.emit(EventUsers)
}

func (s *ChatService) onRemoteTyping(gen uint64, ev typing.Event) {
	s.mu.Lock()
	stale := gen != s.msgGen
	s.mu.Unlock()
	if stale {
		return
	}
	if ev.Typing {
		s.typing.Add(ev.UserID)
	} else {
		s.typing.Remove(ev.UserID)
	}
}

func (s *ChatService) dropPending(gen uint64, tentative string) {
	if tentative == "" {
		return
	}
	s.mu.Lock()
	removed := gen == s.msgGen && s.list.RemovePending(tentative)
	s.mu.Unlock()
	if removed {
		s.emit(EventMessages)
	}
}

func (s *ChatService) emit(kind EventKind) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	ev := Event{Kind: kind}
	for _, fn := range fns {
		fn(ev)
	}
}

// pairKey 与顺序无关的用户对标识
func pairKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return consts.DirectChatLock + pair[0] + ":" + pair[1]
}
