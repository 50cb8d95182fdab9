package consts

const (
	IMTypingChannel = "im:typing:"
	CachePrefix     = "parley:cache:"
)

const (
	DirectChatLock = "lock:direct:chat:"
)
