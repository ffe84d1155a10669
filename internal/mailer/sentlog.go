package mailer

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SentLog 记录已经发送过的邮件。Claim 成功后才允许发送，
// 发送成功调用 Confirm，发送失败调用 Release 让重新投递的消息可以再次发送
type SentLog interface {
	Claim(ctx context.Context, id string) (bool, error)
	Confirm(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
}

const (
	sentPending = "pending"
	sentDone    = "sent"
)

// RedisSentLog 的发送中标记带有较短的过期时间，worker 在发送途中崩溃时标记会自动失效
type RedisSentLog struct {
	rdb       *redis.Client
	claimTTL  time.Duration
	retention time.Duration
}

func NewRedisSentLog(rdb *redis.Client, claimTTL, retention time.Duration) *RedisSentLog {
	return &RedisSentLog{rdb: rdb, claimTTL: claimTTL, retention: retention}
}

func sentKey(id string) string {
	return "mail:sent:" + id
}

func (l *RedisSentLog) Claim(ctx context.Context, id string) (bool, error) {
	return l.rdb.SetNX(ctx, sentKey(id), sentPending, l.claimTTL).Result()
}

func (l *RedisSentLog) Confirm(ctx context.Context, id string) error {
	return l.rdb.Set(ctx, sentKey(id), sentDone, l.retention).Err()
}

func (l *RedisSentLog) Release(ctx context.Context, id string) error {
	return l.rdb.Del(ctx, sentKey(id)).Err()
}
