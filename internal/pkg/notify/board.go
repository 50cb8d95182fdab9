// Package notify 全局唯一的提示条：同一时刻只显示一条，新的提示会抢占旧的
package notify

import (
	"sync"
	"time"

	"Parley/internal/pkg/consts"
)

// Severity 提示级别
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// DefaultTimeout 默认显示时长
const DefaultTimeout = consts.DefaultNotificationTimeoutMs * time.Millisecond

// Notification 当前提示状态，Timeout 以毫秒序列化
type Notification struct {
	Show    bool     `json:"show"`
	Text    string   `json:"text"`
	Type    Severity `json:"type"`
	Timeout int64    `json:"timeout"`
}

// Board 持有唯一的可见提示，到期后自动隐藏
type Board struct {
	mu        sync.Mutex
	current   Notification
	seq       uint64
	timer     *time.Timer
	listeners map[uint64]func(Notification)
	nextID    uint64
}

func NewBoard() *Board {
	return &Board{
		current:   Notification{Type: SeveritySuccess, Timeout: DefaultTimeout.Milliseconds()},
		listeners: make(map[uint64]func(Notification)),
	}
}

// Show 显示提示并抢占当前提示
func (s *Board) Show(text string, severity Severity, timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	if s.timer != nil {
		s.timer.Stop()
	}
	s.current = Notification{
		Show:    true,
		Text:    text,
		Type:    severity,
		Timeout: timeout.Milliseconds(),
	}
	s.timer = time.AfterFunc(timeout, func() { s.hideIf(seq) })
	n, fns := s.current, s.snapshotListeners()
	s.mu.Unlock()

	emit(fns, n)
}

// Hide 隐藏当前提示
func (s *Board) Hide() {
	s.mu.Lock()
	s.hideLocked()
	n, fns := s.current, s.snapshotListeners()
	s.mu.Unlock()

	emit(fns, n)
}

// Current 当前提示
func (s *Board) Current() Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// OnChange 注册监听，返回取消函数
func (s *Board) OnChange(fn func(Notification)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// hideIf 只隐藏仍是同一条的提示，被抢占的旧定时器不生效
func (s *Board) hideIf(seq uint64) {
	s.mu.Lock()
	if s.seq != seq || !s.current.Show {
		s.mu.Unlock()
		return
	}
	s.hideLocked()
	n, fns := s.current, s.snapshotListeners()
	s.mu.Unlock()

	emit(fns, n)
}

func (s *Board) hideLocked() {
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.current.Show = false
}

func (s *Board) snapshotListeners() []func(Notification) {
	fns := make([]func(Notification), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func emit(fns []func(Notification), n Notification) {
	for _, fn := range fns {
		fn(n)
	}
}
