package job

import (
	"context"
	log "log/slog"
	"time"

	"github.com/google/uuid"

	"Parley/internal/pkg/logger"
)

const presenceTimeout = 10 * time.Second

// Heartbeater 刷新当前用户的在线状态
type Heartbeater interface {
	Heartbeat(ctx context.Context) error
}

// PresenceJob 定时刷新 lastSeen，让其他客户端能看到用户仍在线
type PresenceJob struct {
	session Heartbeater
}

func NewPresenceJob(session Heartbeater) *PresenceJob {
	return &PresenceJob{
		session: session,
	}
}

func (s *PresenceJob) Run() {
	traceID := "job-presence-" + uuid.NewString()
	ctx, cancel := context.WithTimeout(logger.WithTrace(context.Background(), traceID), presenceTimeout)
	defer cancel()

	if err := s.session.Heartbeat(ctx); err != nil {
		log.ErrorContext(ctx, "PresenceJob heartbeat failed", "err", err)
		return
	}
	log.DebugContext(ctx, "PresenceJob heartbeat done")
}
