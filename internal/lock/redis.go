package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
)

// 只有持有者才能释放锁，防止锁过期后误删其他进程的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker 基于 SET NX 实现的分布式锁，锁被占用时在 wait 时间内轮询重试
type RedisLocker struct {
	rdb      *redis.Client
	wait     time.Duration
	interval time.Duration
}

func NewRedisLocker(rdb *redis.Client, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		rdb:      rdb,
		wait:     wait,
		interval: 50 * time.Millisecond,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("获取锁 %s 失败: %w", key, err)
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s", domain.ErrLockNotAcquired, key)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.interval):
		}
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("释放锁 %s 失败: %w", key, err)
		}
		return nil
	}
	return release, nil
}
