package model

// Credential 邮箱密码登录凭据
type Credential struct {
	UserID       string  `json:"userId"`
	Email        string  `json:"email"`
	PasswordHash string  `json:"-"`
	DisplayName  string  `json:"displayName"`
	PhotoURL     *string `json:"photoURL,omitempty"`
}
