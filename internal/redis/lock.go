package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

var (
	ErrLockNotAcquired = errors.New("provider lock not acquired")
)

const retryInterval = 25 * time.Millisecond

// Locker serializes booking writes per provider and calendar date.
type Locker interface {
	WithProviderLock(ctx context.Context, providerID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error
}

type redisProviderLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisProviderLocker creates a locker backed by one Redis key per
// provider and date. A busy key is retried until wait elapses.
func NewRedisProviderLocker(client *redis.Client, ttl, wait time.Duration) Locker {
	return &redisProviderLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func lockKey(providerID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("lock:provider:%s:%s", providerID, timeutil.FormatDate(date))
}

func (l *redisProviderLocker) WithProviderLock(ctx context.Context, providerID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	key := lockKey(providerID, date)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// the request context may already be done
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisProviderLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire provider lock: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().Add(retryInterval).After(deadline) {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisProviderLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release provider lock: %w", err)
	}
	return nil
}
