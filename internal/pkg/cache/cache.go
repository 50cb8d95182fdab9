// Package cache 字符串键值的本地持久缓存，进程重启后仍然可读
package cache

import (
	"context"
	"fmt"
)

const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Store 本地持久缓存
type Store interface {
	// Get 键不存在时 ok 为 false 且 err 为 nil
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// UnknownDriverError 配置了不支持的驱动
type UnknownDriverError struct {
	Driver string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown cache driver %q", e.Driver)
}
