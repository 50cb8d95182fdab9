// Package typing 维护当前会话的“正在输入”用户集合
package typing

import (
	"sync"
	"time"
)

// DefaultTTL 输入状态自动过期时间
const DefaultTTL = 3 * time.Second

// Timer 可取消的定时器
type Timer interface {
	Stop() bool
}

// AfterFunc 定时器工厂，测试中可替换为假时钟
type AfterFunc func(d time.Duration, f func()) Timer

func stdAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type entry struct {
	gen   uint64
	timer Timer
}

// Set 带自动过期的用户集合。重复 Add 会刷新过期时间，而不是叠加多个定时器
type Set struct {
	mu       sync.Mutex
	ttl      time.Duration
	after    AfterFunc
	gen      uint64
	entries  map[string]*entry
	order    []string
	onChange func()
}

type Option func(*Set)

// WithTTL 自定义过期时间
func WithTTL(ttl time.Duration) Option {
	return func(s *Set) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithAfterFunc 替换定时器工厂
func WithAfterFunc(fn AfterFunc) Option {
	return func(s *Set) {
		if fn != nil {
			s.after = fn
		}
	}
}

// WithOnChange 集合变化（包括自动过期）后回调，回调在锁外执行
func WithOnChange(fn func()) Option {
	return func(s *Set) {
		s.onChange = fn
	}
}

func NewSet(opts ...Option) *Set {
	s := &Set{
		ttl:     DefaultTTL,
		after:   stdAfterFunc,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add 标记用户正在输入，并从现在起重新计时
func (s *Set) Add(userID string) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	e, ok := s.entries[userID]
	if ok {
		e.timer.Stop()
	} else {
		e = &entry{}
		s.entries[userID] = e
		s.order = append(s.order, userID)
	}
	e.gen = gen
	e.timer = s.after(s.ttl, func() { s.expire(userID, gen) })
	s.mu.Unlock()

	if !ok {
		s.changed()
	}
}

// Remove 显式移除并取消其定时器
func (s *Set) Remove(userID string) {
	s.mu.Lock()
	removed := s.drop(userID)
	s.mu.Unlock()

	if removed {
		s.changed()
	}
}

// Clear 清空集合，切换会话时调用
func (s *Set) Clear() {
	s.mu.Lock()
	had := len(s.entries) > 0
	for _, e := range s.entries {
		e.timer.Stop()
	}
	s.entries = make(map[string]*entry)
	s.order = nil
	s.mu.Unlock()

	if had {
		s.changed()
	}
}

// Has 用户是否正在输入
func (s *Set) Has(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[userID]
	return ok
}

// Users 按首次加入顺序返回正在输入的用户
func (s *Set) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// expire 只有最近一次 Add 的定时器才能移除条目
func (s *Set) expire(userID string, gen uint64) {
	s.mu.Lock()
	e, ok := s.entries[userID]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		return
	}
	s.drop(userID)
	s.mu.Unlock()

	s.changed()
}

func (s *Set) drop(userID string) bool {
	e, ok := s.entries[userID]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.entries, userID)
	for i, id := range s.order {
		if id == userID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Set) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}
