package handler

import (
	"context"
	"errors"
	log "log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"Parley/internal/api/dto"
	"Parley/internal/pkg/notify"
	"Parley/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

// 推送帧类型
const (
	FrameSession      = "session"
	FrameNotification = "notification"
	FrameTheme        = "theme"
	FrameMessages     = "messages"
	FrameChats        = "chats"
	FrameUsers        = "users"
	FrameTyping       = "typing"
	FrameActive       = "active"
)

var errClientGone = errors.New("websocket client is gone or too slow")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsClient struct {
	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

func newWsClient() *wsClient {
	return &wsClient{
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

// enqueue 缓冲区满时不阻塞，返回 false
func (s *wsClient) enqueue(frame []byte) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// ApplyTheme 把主题作为一帧推给该连接
func (s *wsClient) ApplyTheme(theme string) error {
	frame, err := encodeFrame(FrameTheme, dto.ThemeDTO{Theme: theme})
	if err != nil {
		return err
	}
	if !s.enqueue(frame) {
		return errClientGone
	}
	return nil
}

func (s *wsClient) close() {
	s.once.Do(func() {
		close(s.closed)
	})
}

// WsHandler 把本地状态变化推送给所有 websocket 连接
type WsHandler struct {
	chat    *service.ChatService
	session *service.SessionService
	themes  *service.ThemeService
	board   *notify.Board

	mu          sync.Mutex
	clients     map[*wsClient]struct{}
	unsubscribe []func()
}

func NewWsHandler(chat *service.ChatService, session *service.SessionService, themes *service.ThemeService, board *notify.Board) *WsHandler {
	s := &WsHandler{
		chat:    chat,
		session: session,
		themes:  themes,
		board:   board,
		clients: make(map[*wsClient]struct{}),
	}
	s.unsubscribe = []func(){
		chat.OnChange(s.onChatEvent),
		session.OnChange(s.onSessionChange),
		board.OnChange(s.onNotification),
	}
	return s
}

func (s *WsHandler) Connect(c *gin.Context) {
	ctx := c.Request.Context()

	// 升级 Websocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.ErrorContext(ctx, "Websocket upgrade failed", "err", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	client := newWsClient()
	s.register(client)
	defer s.unregister(client)
	s.sendInitial(ctx, client)

	log.InfoContext(ctx, "Websocket connected", "clients", s.clientCount())

	stopChan := make(chan struct{})

	// 读循环：监听客户端主动断开
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(stopChan)
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	// 写循环：把状态帧推送至客户端
	for {
		select {
		case frame := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.WarnContext(ctx, "Websocket push failed", "err", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.WarnContext(ctx, "Websocket ping failed", "err", err)
				return
			}
		case <-client.closed:
			log.WarnContext(ctx, "Websocket client dropped")
			return
		case <-stopChan:
			log.InfoContext(ctx, "Websocket disconnected")
			return
		}
	}
}

// RefreshTheme 主题变化后推送给所有连接，已收到相同主题的连接跳过
func (s *WsHandler) RefreshTheme() {
	for _, client := range s.snapshot() {
		if _, err := s.themes.Apply(client); err != nil {
			log.Warn("Push theme failed", "err", err)
			client.close()
		}
	}
}

// Close 取消状态监听并断开所有连接
func (s *WsHandler) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	clients := make([]*wsClient, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	for _, client := range clients {
		client.close()
	}
}

func (s *WsHandler) sendInitial(ctx context.Context, client *wsClient) {
	frames := []struct {
		typ  string
		data func() (interface{}, error)
	}{
		{FrameSession, s.sessionPayload},
		{FrameNotification, func() (interface{}, error) { return s.board.Current(), nil }},
		{FrameChats, s.chatsPayload},
		{FrameUsers, s.usersPayload},
		{FrameActive, s.activePayload},
		{FrameMessages, s.messagesPayload},
		{FrameTyping, s.typingPayload},
	}
	for _, f := range frames {
		data, err := f.data()
		if err != nil {
			log.ErrorContext(ctx, "Build websocket frame failed", "type", f.typ, "err", err)
			continue
		}
		frame, err := encodeFrame(f.typ, data)
		if err != nil {
			log.ErrorContext(ctx, "Encode websocket frame failed", "type", f.typ, "err", err)
			continue
		}
		client.enqueue(frame)
	}
	if _, err := s.themes.Apply(client); err != nil {
		log.WarnContext(ctx, "Push theme failed", "err", err)
	}
}

func (s *WsHandler) onChatEvent(ev service.Event) {
	switch ev.Kind {
	case service.EventMessages:
		s.broadcast(FrameMessages, s.messagesPayload)
	case service.EventChats:
		s.broadcast(FrameChats, s.chatsPayload)
	case service.EventUsers:
		s.broadcast(FrameUsers, s.usersPayload)
	case service.EventTyping:
		s.broadcast(FrameTyping, s.typingPayload)
	case service.EventActive:
		s.broadcast(FrameActive, s.activePayload)
	}
}

func (s *WsHandler) onSessionChange() {
	s.broadcast(FrameSession, s.sessionPayload)
}

func (s *WsHandler) onNotification(n notify.Notification) {
	s.broadcast(FrameNotification, func() (interface{}, error) { return n, nil })
}

func (s *WsHandler) broadcast(typ string, build func() (interface{}, error)) {
	clients := s.snapshot()
	if len(clients) == 0 {
		return
	}
	data, err := build()
	if err != nil {
		log.Error("Build websocket frame failed", "type", typ, "err", err)
		return
	}
	frame, err := encodeFrame(typ, data)
	if err != nil {
		log.Error("Encode websocket frame failed", "type", typ, "err", err)
		return
	}
	for _, client := range clients {
		if !client.enqueue(frame) {
			log.Warn("Drop slow websocket client", "type", typ)
			client.close()
		}
	}
}

func (s *WsHandler) sessionPayload() (interface{}, error) {
	return toSessionDTO(s.session)
}

func (s *WsHandler) chatsPayload() (interface{}, error) {
	conversations, err := toConversationDTOs(s.chat.Conversations())
	if err != nil {
		return nil, err
	}
	return gin.H{"conversations": conversations, "totalUnread": s.chat.TotalUnreadCount()}, nil
}

func (s *WsHandler) usersPayload() (interface{}, error) {
	return toUserDTOs(s.chat.Roster())
}

func (s *WsHandler) messagesPayload() (interface{}, error) {
	messages, err := toMessageDTOs(s.chat.ActiveMessages())
	if err != nil {
		return nil, err
	}
	return gin.H{
		"chatId":   s.chat.ActiveConversationID(),
		"messages": messages,
		"unread":   s.chat.UnreadCount(),
	}, nil
}

func (s *WsHandler) typingPayload() (interface{}, error) {
	return s.chat.TypingUsers(), nil
}

func (s *WsHandler) activePayload() (interface{}, error) {
	return gin.H{"chatId": s.chat.ActiveConversationID()}, nil
}

func (s *WsHandler) register(client *wsClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = struct{}{}
}

func (s *WsHandler) unregister(client *wsClient) {
	s.mu.Lock()
	delete(s.clients, client)
	s.mu.Unlock()
	client.close()
	s.themes.Forget(client)
}

func (s *WsHandler) snapshot() []*wsClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*wsClient, 0, len(s.clients))
	for client := range s.clients {
		out = append(out, client)
	}
	return out
}

func (s *WsHandler) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func encodeFrame(typ string, data interface{}) ([]byte, error) {
	return json.Marshal(dto.EventDTO{Type: typ, Data: data})
}
