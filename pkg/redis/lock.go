package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mthirumalai2905/clubly-community-hub/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 只删除自己持有的锁
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 跨实例的用户对锁（SET NX PX）
// ttl 兜底持有者崩溃的情况，临界区必须远短于 ttl
type Locker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// NewLocker 创建Redis锁
func NewLocker(client *redis.Client, prefix string, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Locker{client: client, prefix: prefix, ttl: ttl, retry: 10 * time.Millisecond}
}

// Lock 获取 key 上的锁，直到成功或 ctx 结束
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	full := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := unlockScript.Run(context.Background(), l.client, []string{full}, token).Err(); err != nil {
				logger.Warn("释放Redis锁失败", zap.String("key", full), zap.Error(err))
			}
		})
	}, nil
}
