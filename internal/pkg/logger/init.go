package logger

import (
	"io"
	log "log/slog"
	"os"
	"strings"

	"Parley/internal/api/config"
)

// LogWriter gin 访问日志的输出
var LogWriter io.Writer = os.Stdout

// InitLogger JSON 输出到 stdout，trace_id 从 ctx 中提取
func InitLogger(cfg config.LogConfig) {
	hStdout := log.NewJSONHandler(LogWriter, &log.HandlerOptions{Level: ParseLevel(cfg.Level)})
	logger := log.New(&ContextHandler{hStdout})
	log.SetDefault(logger)
}

// ParseLevel 未知级别按 info 处理
func ParseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.LevelDebug
	case "warn", "warning":
		return log.LevelWarn
	case "error":
		return log.LevelError
	}
	return log.LevelInfo
}
