package consts

// 本地持久缓存的键名，与旧版浏览器端保持一致
const (
	ActiveChatIDKey = "chat-app-active-chat-id"
	ThemeKey        = "chat-app-theme"
	SessionTokenKey = "chat-app-session-token"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

const (
	DefaultNotificationTimeoutMs = 3000
)

// UserIDKey gin.Context 与 context.Context 中的当前用户 ID
const UserIDKey = "user_id"

const (
	TraceHeader = "X-Trace-ID"
)
