package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rushairer/batchdb"
)

const (
	DefaultTTL           = 30 * time.Second
	DefaultRetryInterval = 50 * time.Millisecond
)

// 仅当锁仍由当前持有者持有时才删除
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// ErrLockNotHeld 释放时锁已过期或被他人持有
var ErrLockNotHeld = errors.New("redis: lock not held")

// Client Locker 用到的 redis 命令，*redis.Client / *redis.ClusterClient 均满足
type Client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

var _ batchdb.Locker = (*Locker)(nil)

// Locker 基于 SET NX PX 的跨进程表锁，用于串行化同一张表上的 InsertAndFetch
//
// ttl 需大于一次 InsertAndFetch 的最长耗时，否则锁会在操作结束前过期。
type Locker struct {
	client        Client
	ttl           time.Duration
	retryInterval time.Duration
}

// NewLocker 创建 Locker
func NewLocker(client Client) *Locker {
	return &Locker{
		client:        client,
		ttl:           DefaultTTL,
		retryInterval: DefaultRetryInterval,
	}
}

// WithTTL 设置锁的过期时间（链式调用）
func (l *Locker) WithTTL(ttl time.Duration) *Locker {
	if ttl > 0 {
		l.ttl = ttl
	}
	return l
}

// WithRetryInterval 设置抢锁失败后的重试间隔（链式调用）
func (l *Locker) WithRetryInterval(d time.Duration) *Locker {
	if d > 0 {
		l.retryInterval = d
	}
	return l
}

// Lock 循环尝试获取锁直到成功或 ctx 结束
func (l *Locker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: lock %s: %w", key, err)
		}
		if ok {
			return func(ctx context.Context) error {
				return l.release(ctx, key, token)
			}, nil
		}

		timer := time.NewTimer(l.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Locker) release(ctx context.Context, key, token string) error {
	n, err := l.client.Eval(ctx, releaseScript, []string{key}, token).Int64()
	if err != nil {
		return fmt.Errorf("redis: unlock %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrLockNotHeld, key)
	}
	return nil
}
