package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Parley/internal/api/middleware"
	"Parley/internal/pkg/logger"
)

func SetupRouter(group *HandlersGroup, allowOrigins []string) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(middleware.CORSMiddleware(allowOrigins))
	logger.SetupGin(r)

	// 页面路由
	r.GET("/", middleware.Guard(middleware.RouteMeta{Redirect: middleware.ChatPath}, group.Session))
	r.GET(middleware.LoginPath, middleware.Guard(middleware.RouteMeta{RequiresGuest: true}, group.Session), group.PageHandler.Login)
	r.GET(middleware.ChatPath, middleware.Guard(middleware.RouteMeta{RequiresAuth: true}, group.Session), group.PageHandler.Chat)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"code":    200,
				"message": "pong",
				"data":    nil,
			})
		})

		apiGroup.GET("/events", group.WsHandler.Connect)

		sessionGroup := apiGroup.Group("/session")
		{
			// 无需登录即可访问的接口
			sessionGroup.GET("", group.SessionHandler.Me)
			sessionGroup.POST("/login", group.SessionHandler.Login)
			sessionGroup.POST("/login/google", group.SessionHandler.LoginWithGoogle)
			sessionGroup.POST("/register", group.SessionHandler.Register)

			authGroup := sessionGroup.Group("")
			authGroup.Use(middleware.AuthMiddleware(group.Session))
			{
				authGroup.POST("/logout", group.SessionHandler.Logout)
				authGroup.PUT("/presence", group.SessionHandler.UpdatePresence)
			}
		}

		chatGroup := apiGroup.Group("/chat")
		chatGroup.Use(middleware.AuthMiddleware(group.Session))
		{
			chatGroup.GET("/state", group.ChatHandler.State)
			chatGroup.GET("/conversations", group.ChatHandler.Conversations)
			chatGroup.PUT("/active", group.ChatHandler.SetActive)
			chatGroup.POST("/open", group.ChatHandler.Open)
			chatGroup.GET("/messages", group.ChatHandler.Messages)
			chatGroup.POST("/messages", group.ChatHandler.Send)
			chatGroup.PUT("/messages/:message_id", group.ChatHandler.Edit)
			chatGroup.POST("/messages/:message_id/reactions", group.ChatHandler.React)
			chatGroup.POST("/read", group.ChatHandler.MarkRead)
			chatGroup.POST("/direct", group.ChatHandler.Direct)
			chatGroup.POST("/typing", group.ChatHandler.Typing)
			chatGroup.POST("/attachments", group.ChatHandler.Upload)
			chatGroup.GET("/users", group.ChatHandler.Users)
			chatGroup.GET("/unread", group.ChatHandler.Unread)
		}

		themeGroup := apiGroup.Group("/theme")
		{
			themeGroup.GET("", group.ThemeHandler.Get)
			themeGroup.PUT("", group.ThemeHandler.Set)
			themeGroup.POST("/toggle", group.ThemeHandler.Toggle)
		}

		notificationGroup := apiGroup.Group("/notification")
		{
			notificationGroup.GET("", group.NotificationHandler.Current)
			notificationGroup.DELETE("", group.NotificationHandler.Hide)
		}
	}

	return r
}
