package service

import "Parley/internal/model"

// ActiveConversationID 当前选中的会话 ID，未选中时为空
func (s *ChatService) ActiveConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// ActiveConversation 选中会话的详情；general 频道不在会话列表中，返回 false
func (s *ChatService) ActiveConversation() (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chatList {
		if c.ID == s.activeID {
			return c.Clone(), true
		}
	}
	return model.Conversation{}, false
}

// ActiveMessages 当前会话的消息，按时间升序
func (s *ChatService) ActiveMessages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.list.Items()
	for i := range items {
		items[i] = items[i].Clone()
	}
	return items
}

// Conversations 当前用户参与的会话，按最后消息时间倒序
func (s *ChatService) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Conversation, len(s.chatList))
	for i, c := range s.chatList {
		out[i] = c.Clone()
	}
	return out
}

// Roster 全部用户
func (s *ChatService) Roster() []model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.User, len(s.roster))
	for i, u := range s.roster {
		out[i] = u.Clone()
	}
	return out
}

// Friends 除自己以外的用户
func (s *ChatService) Friends(selfID string) []model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.User, 0, len(s.roster))
	for _, u := range s.roster {
		if u.ID != selfID {
			out = append(out, u.Clone())
		}
	}
	return out
}

func (s *ChatService) UserByID(id string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.roster {
		if u.ID == id {
			return u.Clone(), true
		}
	}
	return model.User{}, false
}

// UnreadCount 当前会话中未读的已确认消息数
func (s *ChatService) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.list.Items() {
		if !m.Read && !m.Pending {
			n++
		}
	}
	return n
}

// TotalUnreadCount 各会话未读计数之和
func (s *ChatService) TotalUnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, c := range s.chatList {
		total += c.UnreadCount
	}
	return total
}

func (s *ChatService) TypingUsers() []string {
	return s.typing.Users()
}
