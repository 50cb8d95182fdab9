package reconcile

import (
	"sort"
	"time"
)

// Ordered 按 ID 去重、按时间戳非递减排列的列表。时间戳相同的条目保持到达顺序，不重新排序
type Ordered[T any] struct {
	items []T
	ids   map[string]time.Time // ID -> 入列时的时间戳
	key   func(T) string
	at    func(T) time.Time
}

// NewOrdered 创建有序列表，at 为 nil 时按到达顺序追加
func NewOrdered[T any](key func(T) string, at func(T) time.Time) *Ordered[T] {
	if at == nil {
		at = func(T) time.Time { return time.Time{} }
	}
	return &Ordered[T]{
		ids: make(map[string]time.Time),
		key: key,
		at:  at,
	}
}

// Len 条目数
func (s *Ordered[T]) Len() int {
	return len(s.items)
}

// Has 是否包含该 ID
func (s *Ordered[T]) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Get 按 ID 取条目
func (s *Ordered[T]) Get(id string) (T, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.items[i], true
	}
	var zero T
	return zero, false
}

// Items 返回条目切片的副本
func (s *Ordered[T]) Items() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Insert 插入新条目，ID 已存在时不做任何修改并返回 false
func (s *Ordered[T]) Insert(doc T) bool {
	id := s.key(doc)
	if s.Has(id) {
		return false
	}
	at := s.at(doc)
	pos := s.position(at)
	s.items = append(s.items, doc)
	copy(s.items[pos+1:], s.items[pos:])
	s.items[pos] = doc
	s.ids[id] = at
	return true
}

// Replace 覆盖已存在的条目，不存在时返回 false。时间戳变化时重新定位以维持顺序
func (s *Ordered[T]) Replace(doc T) bool {
	id := s.key(doc)
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	if s.at(s.items[i]).Equal(s.at(doc)) {
		s.items[i] = doc
		s.ids[id] = s.at(doc)
		return true
	}
	s.removeAt(i)
	delete(s.ids, id)
	return s.Insert(doc)
}

// Remove 按 ID 删除，不存在时返回 false
func (s *Ordered[T]) Remove(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.removeAt(i)
	delete(s.ids, id)
	return true
}

// Reset 用完整结果集整体替换，沿用推送的顺序；重复 ID 只保留第一次出现
func (s *Ordered[T]) Reset(docs []T) {
	s.items = make([]T, 0, len(docs))
	s.ids = make(map[string]time.Time, len(docs))
	for _, d := range docs {
		id := s.key(d)
		if s.Has(id) {
			continue
		}
		s.items = append(s.items, d)
		s.ids[id] = s.at(d)
	}
}

// Clear 清空
func (s *Ordered[T]) Clear() {
	s.items = nil
	s.ids = make(map[string]time.Time)
}

// indexOf 先在同一时间戳的区间内二分定位，推送顺序未按时间排列时退回线性查找
func (s *Ordered[T]) indexOf(id string) int {
	at, ok := s.ids[id]
	if !ok {
		return -1
	}
	lo := sort.Search(len(s.items), func(i int) bool {
		return !s.at(s.items[i]).Before(at)
	})
	for i := lo; i < len(s.items) && s.at(s.items[i]).Equal(at); i++ {
		if s.key(s.items[i]) == id {
			return i
		}
	}
	for i := range s.items {
		if s.key(s.items[i]) == id {
			return i
		}
	}
	return -1
}

// position 第一个时间戳晚于 at 的位置，即最后一个 <= at 的条目之后
func (s *Ordered[T]) position(at time.Time) int {
	return sort.Search(len(s.items), func(i int) bool {
		return s.at(s.items[i]).After(at)
	})
}

func (s *Ordered[T]) removeAt(i int) {
	copy(s.items[i:], s.items[i+1:])
	var zero T
	s.items[len(s.items)-1] = zero
	s.items = s.items[:len(s.items)-1]
}
