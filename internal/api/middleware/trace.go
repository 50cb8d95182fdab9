package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/logger"
)

func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(consts.TraceHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}

		c.Set(logger.TraceIDKey, traceID)
		c.Request = c.Request.WithContext(logger.WithTrace(c.Request.Context(), traceID))

		c.Header(consts.TraceHeader, traceID)
		c.Next()
	}
}
