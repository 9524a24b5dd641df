package pipeline

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// ingestionLockKey 是摄取单飞锁的 Redis 键；同一时刻至多一个构建在执行。
const ingestionLockKey = "ingest:lock"

// Locker 是摄取单飞锁的抽象，管道在测试中用确定性假实现替换。
type Locker interface {
	// Acquire 尝试抢占锁；已被占用时返回 false 而不是错误。
	Acquire(ctx context.Context, owner string) (bool, error)
	// Release 释放锁。
	Release(ctx context.Context) error
}

type redisLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisLocker 返回基于 Redis SetNX 的 Locker，TTL 防止持有者崩溃后死锁。
func NewRedisLocker(rdb *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{rdb: rdb, ttl: ttl}
}

func (l *redisLocker) Acquire(ctx context.Context, owner string) (bool, error) {
	return l.rdb.SetNX(ctx, ingestionLockKey, owner, l.ttl).Result()
}

func (l *redisLocker) Release(ctx context.Context) error {
	return l.rdb.Del(ctx, ingestionLockKey).Err()
}
