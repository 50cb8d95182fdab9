package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"

	"Parley/internal/api/dto"
	"Parley/internal/model"
	"Parley/internal/pkg/consts"
	"Parley/internal/service"
)

func currentUserID(c *gin.Context) string {
	return c.GetString(consts.UserIDKey)
}

func toMessageDTOs(msgs []model.Message) ([]*dto.MessageDTO, error) {
	out := make([]*dto.MessageDTO, 0, len(msgs))
	if err := copier.Copy(&out, &msgs); err != nil {
		return nil, err
	}
	return out, nil
}

func toMessageDTO(msg *model.Message) (*dto.MessageDTO, error) {
	out := &dto.MessageDTO{}
	if err := copier.Copy(out, msg); err != nil {
		return nil, err
	}
	return out, nil
}

func toConversationDTOs(chats []model.Conversation) ([]*dto.ConversationDTO, error) {
	out := make([]*dto.ConversationDTO, 0, len(chats))
	if err := copier.Copy(&out, &chats); err != nil {
		return nil, err
	}
	return out, nil
}

func toUserDTOs(users []model.User) ([]*dto.UserDTO, error) {
	out := make([]*dto.UserDTO, 0, len(users))
	if err := copier.Copy(&out, &users); err != nil {
		return nil, err
	}
	return out, nil
}

func toSessionDTO(session *service.SessionService) (*dto.SessionDTO, error) {
	out := &dto.SessionDTO{
		Authenticated: session.IsAuthenticated(),
		Loading:       session.Loading(),
	}
	if err := session.Err(); err != nil {
		out.Error = err.Error()
	}
	if user := session.User(); user != nil {
		out.User = &dto.UserDTO{}
		if err := copier.Copy(out.User, user); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func toChatState(chat *service.ChatService) (*dto.ChatStateDTO, error) {
	conversations, err := toConversationDTOs(chat.Conversations())
	if err != nil {
		return nil, err
	}
	messages, err := toMessageDTOs(chat.ActiveMessages())
	if err != nil {
		return nil, err
	}
	state := &dto.ChatStateDTO{
		ActiveChatID:  chat.ActiveConversationID(),
		Conversations: conversations,
		Messages:      messages,
		TypingUsers:   chat.TypingUsers(),
		Unread: dto.UnreadDTO{
			Active: chat.UnreadCount(),
			Total:  chat.TotalUnreadCount(),
		},
	}
	if active, ok := chat.ActiveConversation(); ok {
		state.Active = &dto.ConversationDTO{}
		if err := copier.Copy(state.Active, &active); err != nil {
			return nil, err
		}
	}
	return state, nil
}
