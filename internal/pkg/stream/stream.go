// Package stream 定义变更流的通用原语：快照、增量变更与可取消的订阅句柄
package stream

import "sync"

// ChangeType 增量变更类型
type ChangeType string

const (
	Added    ChangeType = "added"
	Modified ChangeType = "modified"
	Removed  ChangeType = "removed"
)

// Change 单条文档变更，Removed 时 Doc 可能为零值
type Change[T any] struct {
	Type ChangeType
	ID   string
	Doc  T
}

// Snapshot 一次推送：查询的完整有序结果集与本次携带的增量
type Snapshot[T any] struct {
	Docs    []T
	Changes []Change[T]
}

// Handler 变更流回调
type Handler[T any] func(Snapshot[T])

// Subscription 订阅句柄，Unsubscribe 必须幂等
type Subscription interface {
	Unsubscribe()
}

type funcSubscription struct {
	once sync.Once
	fn   func()
}

func (s *funcSubscription) Unsubscribe() {
	s.once.Do(func() {
		if s.fn != nil {
			s.fn()
		}
	})
}

// NewSubscription 用取消函数构造订阅句柄，多次 Unsubscribe 只执行一次 fn
func NewSubscription(fn func()) Subscription {
	return &funcSubscription{fn: fn}
}

// Noop 空订阅
func Noop() Subscription {
	return NewSubscription(nil)
}
