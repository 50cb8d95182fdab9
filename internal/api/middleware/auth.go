package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/response"
)

// SessionReader 提供当前登录用户
type SessionReader interface {
	CurrentUserID() string
	IsAuthenticated() bool
}

// AuthMiddleware 要求已登录，并把用户 ID 注入 Context
func AuthMiddleware(session SessionReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := session.CurrentUserID()
		if userID == "" {
			response.Fail(c, response.Unauthorized, "用户未登录")
			c.Abort()
			return
		}

		c.Set(consts.UserIDKey, userID)
		newCtx := context.WithValue(c.Request.Context(), consts.UserIDKey, userID)
		c.Request = c.Request.WithContext(newCtx)

		c.Next()
	}
}
