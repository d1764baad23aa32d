package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLocker implements Locker with SET NX EX. The stored value is a
// per-acquisition token so a holder only ever deletes its own lock: if
// the TTL expired and another run took over, release leaves the new
// holder's key in place.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string) (func(), bool, error) {
	key := "lock:" + name
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Release must succeed even when the acquiring context is already
		// cancelled, so it runs on its own short deadline.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		current, err := l.client.Get(ctx, key).Result()
		if err != nil {
			l.logger.Warn("lock release: could not read lock key", zap.String("lock", name), zap.Error(err))
			return
		}
		if current != token {
			l.logger.Warn("lock release: token mismatch, lock was taken over", zap.String("lock", name))
			return
		}
		if err := l.client.Del(ctx, key).Err(); err != nil {
			l.logger.Warn("lock release failed", zap.String("lock", name), zap.Error(err))
		}
	}
	return release, true, nil
}

var _ Locker = (*RedisLocker)(nil)
