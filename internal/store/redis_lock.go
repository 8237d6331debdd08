package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/Felps0156/SDR-Agent/internal/logger"
)

const (
	defaultLockTTL   = 30 * time.Second
	defaultLockRetry = 50 * time.Millisecond
	lockKeyPrefix    = "sdr-agent:booking-lock:"
)

// releaseScript deletes the key only while it still holds our token, so a
// lease that expired and was taken by another writer is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// NewRedisClient connects and pings with a short timeout.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// RedisLocker is a lease-based lock shared by every process that points
// at the same Redis. A holder that dies releases the key when TTL expires.
type RedisLocker struct {
	client redis.Cmdable
	ttl    time.Duration
	retry  time.Duration
	logger *logger.Logger
}

func NewRedisLocker(client redis.Cmdable, ttl time.Duration, log *logger.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if log == nil {
		log = logger.Discard()
	}
	return &RedisLocker{client: client, ttl: ttl, retry: defaultLockRetry, logger: log}
}

// Key is the Redis key guarding a calendar.
func (l *RedisLocker) Key(name string) string {
	return lockKeyPrefix + name
}

// Lock polls SET NX until it wins the lease or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, name string) (func(), error) {
	token := uuid.NewString()
	key := l.Key(name)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire booking lock: %w", err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return func() {
		// The caller's ctx may already be cancelled; release regardless.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			// The lease still expires after ttl; until then writers wait.
			l.logger.Error("Failed to release booking lock",
				logger.Action("unlock"), logger.F("KEY", key), logger.Duration(l.ttl), logger.Error(err))
		}
	}, nil
}
