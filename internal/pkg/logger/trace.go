package logger

import (
	"context"
	log "log/slog"

	"Parley/internal/pkg/consts"
)

// TraceIDKey Context 中的链路 ID
const TraceIDKey = "trace_id"

// WithTrace 把链路 ID 写入 ctx，HTTP 请求与定时任务共用
func WithTrace(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// TraceID 读取 ctx 中的链路 ID，不存在时返回空串
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(TraceIDKey).(string)
	return id
}

// ContextHandler 从 ctx 中提取 trace_id 与当前登录用户 user_id 附加到每条日志
type ContextHandler struct {
	log.Handler
}

func (h *ContextHandler) Handle(ctx context.Context, r log.Record) error {
	if id := TraceID(ctx); id != "" {
		r.AddAttrs(log.String(TraceIDKey, id))
	}
	if ctx != nil {
		if userID, ok := ctx.Value(consts.UserIDKey).(string); ok && userID != "" {
			r.AddAttrs(log.String(consts.UserIDKey, userID))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []log.Attr) log.Handler {
	return &ContextHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) log.Handler {
	return &ContextHandler{h.Handler.WithGroup(name)}
}
