package locker

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// KEYS[1]: lock key, ARGV[1]: owner token. Only the owner may delete.
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`

var unlock = redis.NewScript(unlockScript)

// RedisLocker serializes across processes sharing one Redis. Each key is a
// SET NX with a TTL so a crashed holder cannot wedge a user forever.
type RedisLocker struct {
	client        redis.UniversalClient
	ttl           time.Duration
	retryInterval time.Duration
	retryTimes    int
}

var _ Locker = (*RedisLocker)(nil)

func NewRedisLocker(client redis.UniversalClient, ttl, retryInterval time.Duration, retryTimes int) *RedisLocker {
	if retryTimes <= 0 {
		retryTimes = 1
	}
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: retryInterval,
		retryTimes:    retryTimes,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	ordered := orderKeys(keys)
	token := uuid.New().String()
	held := make([]string, 0, len(ordered))

	for _, key := range ordered {
		if err := l.lockOne(ctx, key, token); err != nil {
			l.release(held, token)
			return nil, err
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(held, token) }) }, nil
}

// lockOne spins on SET NX with jitter until the key is ours
func (l *RedisLocker) lockOne(ctx context.Context, key, token string) error {
	for i := 0; i < l.retryTimes; i++ {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return nil
		}

		sleepTime := l.retryInterval + time.Duration(rand.Intn(10))*time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepTime):
		}
	}
	return fmt.Errorf("%w: %s", ErrLockTimeout, key)
}

func (l *RedisLocker) release(keys []string, token string) {
	// release even if the caller's context is already gone
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(keys) - 1; i >= 0; i-- {
		n, err := unlock.Run(ctx, l.client, []string{keys[i]}, token).Int()
		if err != nil {
			zap.L().Warn("Failed to release lock", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		if n == 0 {
			zap.L().Warn("Lock expired before release", zap.String("key", keys[i]))
		}
	}
}
