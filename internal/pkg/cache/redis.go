package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"Parley/internal/pkg/consts"
)

// RedisStore 以 Redis 作为缓存，键统一加前缀；连接由调用方管理
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, namespace string) *RedisStore {
	prefix := consts.CachePrefix
	if namespace != "" {
		prefix += namespace + ":"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.rdb.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, s.prefix+key, value, 0).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

func (s *RedisStore) Close() error {
	return nil
}
