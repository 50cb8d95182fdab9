package logger

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"Parley/internal/pkg/consts"
)

const redisSlowThreshold = 100 * time.Millisecond

// Redis 流量的用途分类
const (
	RedisAreaTyping = "typing"
	RedisAreaCache  = "cache"
	RedisAreaOther  = "other"
)

// RedisLoggerHook 按用途（输入状态频道 / 本地缓存）标记命令，缓存中的会话令牌不落日志
type RedisLoggerHook struct{}

func NewRedisLogger() *RedisLoggerHook {
	return &RedisLoggerHook{}
}

func (s *RedisLoggerHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		start := time.Now()
		conn, err := next(ctx, network, addr)
		if err != nil {
			log.ErrorContext(ctx, "Redis dial failed",
				log.String("addr", addr),
				log.Duration("latency", time.Since(start)),
				log.Any("err", err),
			)
		}
		return conn, err
	}
}

func (s *RedisLoggerHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		elapsed := time.Since(start)

		area, target := RedisArea(cmd)
		fields := []any{
			log.String("command", cmd.Name()),
			log.String("area", area),
			log.String("target", target),
			log.String("args", RedisArgs(cmd)),
			log.Duration("latency", elapsed),
		}

		switch {
		case err != nil:
			if errors.Is(err, redis.Nil) {
				return err
			}
			if cmd.Name() == "client" && strings.Contains(err.Error(), "setinfo") {
				return err
			}
			log.ErrorContext(ctx, "Redis command failed", append(fields, log.Any("err", err))...)
		case elapsed > redisSlowThreshold:
			log.WarnContext(ctx, "Redis slow command", fields...)
		case area == RedisAreaTyping:
			log.DebugContext(ctx, "Redis typing traffic", fields...)
		}
		return err
	}
}

func (s *RedisLoggerHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		if err != nil {
			log.ErrorContext(ctx, "Redis pipeline failed",
				log.Int("cmd_count", len(cmds)),
				log.Duration("latency", time.Since(start)),
				log.Any("err", err))
		}
		return err
	}
}

// RedisArea 返回命令所属用途与涉及的频道或缓存键（已去掉前缀）
func RedisArea(cmd redis.Cmder) (string, string) {
	args := cmd.Args()
	if len(args) < 2 {
		return RedisAreaOther, ""
	}
	for _, a := range args[1:] {
		v, ok := a.(string)
		if !ok {
			continue
		}
		if strings.HasPrefix(v, consts.IMTypingChannel) {
			return RedisAreaTyping, strings.TrimPrefix(v, consts.IMTypingChannel)
		}
		if strings.HasPrefix(v, consts.CachePrefix) {
			return RedisAreaCache, strings.TrimPrefix(v, consts.CachePrefix)
		}
	}
	return RedisAreaOther, ""
}

// RedisArgs 格式化命令参数；认证命令与写入会话令牌的值会被隐藏
func RedisArgs(cmd redis.Cmder) string {
	switch cmd.Name() {
	case "auth", "hello":
		return "[PROTECTED]"
	}
	args := cmd.Args()
	if cmd.Name() == "set" && len(args) >= 3 {
		if key, ok := args[1].(string); ok && strings.HasSuffix(key, consts.SessionTokenKey) {
			masked := append([]any{}, args...)
			masked[2] = "[PROTECTED]"
			return fmt.Sprint(masked)
		}
	}
	return fmt.Sprint(args)
}
