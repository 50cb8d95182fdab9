package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	LoginPath = "/login"
	ChatPath  = "/chat"
)

// RouteMeta 页面路由的访问要求
type RouteMeta struct {
	RequiresAuth  bool
	RequiresGuest bool
	// Redirect 非空时无条件跳转
	Redirect string
}

// Resolve 返回需要跳转的目标，空字符串表示放行
func Resolve(meta RouteMeta, authenticated bool) string {
	switch {
	case meta.Redirect != "":
		return meta.Redirect
	case meta.RequiresAuth && !authenticated:
		return LoginPath
	case meta.RequiresGuest && authenticated:
		return ChatPath
	}
	return ""
}

// Guard 页面路由守卫
func Guard(meta RouteMeta, session SessionReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		if to := Resolve(meta, session.IsAuthenticated()); to != "" {
			c.Redirect(http.StatusFound, to)
			c.Abort()
			return
		}
		c.Next()
	}
}
