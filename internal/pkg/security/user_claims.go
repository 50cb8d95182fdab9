package security

import (
	"github.com/golang-jwt/jwt/v5"
)

// UserClaims 会话令牌中携带的身份信息
type UserClaims struct {
	UserID      string  `json:"user_id"`
	Email       string  `json:"email"`
	DisplayName string  `json:"name"`
	PhotoURL    *string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}
