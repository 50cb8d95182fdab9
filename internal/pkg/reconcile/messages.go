package reconcile

import (
	"time"

	"Parley/internal/model"
)

// PendingPrefix 乐观插入条目的临时 ID 前缀
const PendingPrefix = "pending:"

// MessageList 当前会话的有序消息列表，包含尚未被服务端确认的本地条目
type MessageList struct {
	list        *Ordered[model.Message]
	pending     []string
	matchWindow time.Duration
}

// NewMessageList matchWindow 为本地时间戳与服务端时间戳允许的最大偏差
func NewMessageList(matchWindow time.Duration) *MessageList {
	return &MessageList{
		list: NewOrdered(
			func(m model.Message) string { return m.ID },
			func(m model.Message) time.Time { return m.Timestamp },
		),
		matchWindow: matchWindow,
	}
}

// Len 条目数
func (s *MessageList) Len() int {
	return s.list.Len()
}

// Items 有序副本
func (s *MessageList) Items() []model.Message {
	return s.list.Items()
}

// Get 按 ID 取消息
func (s *MessageList) Get(id string) (model.Message, bool) {
	return s.list.Get(id)
}

// PendingCount 未确认的乐观条目数
func (s *MessageList) PendingCount() int {
	return len(s.pending)
}

// AddPending 插入乐观条目，msg.ID 必须是临时 ID
func (s *MessageList) AddPending(msg model.Message) {
	msg.Pending = true
	msg.Status = model.StatusSending
	if s.list.Insert(msg) {
		s.pending = append(s.pending, msg.ID)
	}
}

// RemovePending 删除指定的乐观条目，发送失败时调用
func (s *MessageList) RemovePending(id string) bool {
	for i, p := range s.pending {
		if p == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return s.list.Remove(id)
		}
	}
	return false
}

// Clear 清空消息与乐观条目
func (s *MessageList) Clear() {
	s.list.Clear()
	s.pending = nil
}

// upsert 统一的写入口：已有条目时保留更高的状态，没有时尝试消化一个乐观条目再插入
func (s *MessageList) upsert(doc model.Message) {
	doc = normalize(doc)
	if prev, ok := s.list.Get(doc.ID); ok {
		s.list.Replace(merge(prev, doc))
		return
	}
	s.consumePending(doc)
	s.list.Insert(doc)
}

// modify 只覆盖已存在的条目
func (s *MessageList) modify(doc model.Message) {
	doc = normalize(doc)
	if prev, ok := s.list.Get(doc.ID); ok {
		s.list.Replace(merge(prev, doc))
	}
}

func (s *MessageList) remove(id string) {
	s.list.Remove(id)
}

// reset 以完整结果集重建，乐观条目整体丢弃
func (s *MessageList) reset(docs []model.Message) {
	next := make([]model.Message, 0, len(docs))
	for _, d := range docs {
		d = normalize(d)
		if prev, ok := s.list.Get(d.ID); ok && !prev.Pending {
			d = merge(prev, d)
		}
		next = append(next, d)
	}
	s.pending = nil
	s.list.Reset(next)
}

// consumePending 按发送者、文本与时间窗口匹配最早的乐观条目并移除
func (s *MessageList) consumePending(doc model.Message) {
	for i, id := range s.pending {
		p, ok := s.list.Get(id)
		if !ok {
			continue
		}
		if p.SenderID != doc.SenderID || p.Text != doc.Text {
			continue
		}
		if absDuration(doc.Timestamp.Sub(p.Timestamp)) > s.matchWindow {
			continue
		}
		s.pending = append(s.pending[:i], s.pending[i+1:]...)
		s.list.Remove(id)
		return
	}
}

// normalize 服务端文档不可能仍处于 sending
func normalize(doc model.Message) model.Message {
	doc.Pending = false
	if doc.Status == "" || doc.Status == model.StatusSending {
		doc.Status = model.StatusSent
	}
	if doc.Read && doc.Status.Rank() < model.StatusRead.Rank() {
		doc.Status = model.StatusRead
	}
	return doc
}

// merge 内容以新文档为准，状态不回退
func merge(prev, next model.Message) model.Message {
	if next.Status.Rank() < prev.Status.Rank() {
		next.Status = prev.Status
	}
	if prev.Read {
		next.Read = true
	}
	return next
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
